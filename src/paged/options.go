package paged

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/utils"
)

const DefaultSize = 40

type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", apierr.BadRequest(nil, "Unknown sort order %q, expected asc or desc", s)
	}
}

func (o Order) SQL() string {
	if o == Ascending {
		return "ASC"
	}
	return "DESC"
}

/*
Options controls which slice of a listing is returned. The zero value is
valid and means the first page of DefaultSize items, newest first.
*/
type Options struct {
	// 1-based.
	Page int
	// Nil means DefaultSize. Zero means no limit.
	Size *int
	// A sort key of the resource. Empty means the id column.
	Sort  string
	Order Order
	// Ignore Page and Size entirely. Used for counting.
	Unlimited bool
}

// Page and size after defaults and clamping.
func (o Options) Normalized() (page int, size int) {
	page = utils.IntMax(1, o.Page)
	size = DefaultSize
	if o.Size != nil {
		size = utils.IntMax(0, *o.Size)
	}
	return page, size
}

func (o Options) Offset() int {
	page, size := o.Normalized()
	return size * (page - 1)
}

// Whether a LIMIT should be applied at all.
func (o Options) IsLimited() bool {
	_, size := o.Normalized()
	return !o.Unlimited && size > 0
}

/*
Number of pages needed for total items. An empty result has no pages, and an
unlimited listing fits on one.
*/
func NumPages(total, size int) int {
	if total <= 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Maps sort key names to columns. Keys are matched ignoring case.
type SortKeys map[string]string

func (keys SortKeys) Column(key string) (string, bool) {
	if column, ok := keys[key]; ok {
		return column, true
	}
	for name, column := range keys {
		if strings.EqualFold(name, key) {
			return column, true
		}
	}
	return "", false
}

func (keys SortKeys) Names() []string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (keys SortKeys) resolve(key string) (string, error) {
	column, ok := keys.Column(key)
	if !ok {
		return "", apierr.BadRequest(nil, "Unknown sort key %q, expected one of: %s", key, strings.Join(keys.Names(), ", "))
	}
	return column, nil
}

type Page[T any] struct {
	Items []*T `json:"items"`
	Total int  `json:"total"`
	Page  int  `json:"page"`
	Pages int  `json:"pages"`
}

func (p *Page[T]) String() string {
	return fmt.Sprintf("page %d/%d (%d items of %d)", p.Page, p.Pages, len(p.Items), p.Total)
}
