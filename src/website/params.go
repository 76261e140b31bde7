package website

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/paged"
)

const maxBodySize = 1 << 20

/*
Decodes the JSON request body into a T. Unknown fields, trailing data and an
empty body are all bad requests.
*/
func decodeJson[T any](c *RequestContext) (T, error) {
	var result T

	body, err := io.ReadAll(http.MaxBytesReader(c.Res, c.Req.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return result, apierr.BadRequest(err, "Request body is too large")
		}
		return result, apierr.BadRequest(err, "Failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, apierr.BadRequest(nil, "Missing request body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, apierr.BadRequest(err, "Invalid request body: %v", err)
	}
	if dec.More() {
		return result, apierr.BadRequest(nil, "Invalid request body: unexpected data after JSON value")
	}
	return result, nil
}

// The numeric id path parameter.
func pathID(c *RequestContext) (int, error) {
	raw := c.PathParams["id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.BadRequest(err, "Invalid id: %q", raw)
	}
	return id, nil
}

/*
queryReader pulls typed values out of the query string. The first malformed
value is remembered in err, and every later read still returns a usable zero
value, so a handler can read everything and check once.
*/
type queryReader struct {
	values url.Values
	err    error
}

func newQueryReader(c *RequestContext) *queryReader {
	return &queryReader{values: c.Req.URL.Query()}
}

func (q *queryReader) fail(name, value string, cause error) {
	if q.err == nil {
		q.err = apierr.BadRequest(cause, "Invalid value for %s: %q", name, value)
	}
}

func (q *queryReader) str(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

// Nil when the parameter is absent or empty.
func (q *queryReader) int(name string) *int {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, raw, err)
		return nil
	}
	return &v
}

func (q *queryReader) bool(name string) *bool {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, raw, err)
		return nil
	}
	return &v
}

func (q *queryReader) rank(name string) *models.Rank {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	rank, err := models.ParseRank(raw)
	if err != nil {
		q.fail(name, raw, err)
		return nil
	}
	return &rank
}

// Every value of a repeatable parameter, also split on commas and spaces.
func (q *queryReader) list(name string) []string {
	var result []string
	for _, raw := range q.values[name] {
		result = append(result, strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return result
}

func (q *queryReader) pageOptions() paged.Options {
	var opts paged.Options
	if page := q.int("page"); page != nil {
		opts.Page = *page
	}
	opts.Size = q.int("size")
	opts.Sort = q.str("sort")

	order, err := paged.ParseOrder(q.values.Get("order"))
	if err != nil && q.err == nil {
		q.err = err
	}
	opts.Order = order
	return opts
}
