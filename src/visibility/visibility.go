/*
Package visibility decides which hidden rows a caller may see. Deleted and
private projects and hidden comments all follow the same three states.
*/
package visibility

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/models"
)

type Kind int

const (
	// Only rows that are not hidden.
	KindNone Kind = iota
	// Rows that are not hidden, plus hidden rows belonging to one user.
	KindOnly
	// Everything.
	KindAll
)

type Visibility struct {
	kind    Kind
	ownerID int
}

func None() Visibility {
	return Visibility{kind: KindNone}
}

func Only(ownerID int) Visibility {
	return Visibility{kind: KindOnly, ownerID: ownerID}
}

func All() Visibility {
	return Visibility{kind: KindAll}
}

func (v Visibility) Kind() Kind {
	return v.kind
}

// The user whose hidden rows are visible. Only meaningful for KindOnly.
func (v Visibility) OwnerID() int {
	return v.ownerID
}

func (v Visibility) String() string {
	switch v.kind {
	case KindOnly:
		return fmt.Sprintf("Only(%d)", v.ownerID)
	case KindAll:
		return "All"
	default:
		return "None"
	}
}

// Janitors and above see everything, other users see their own hidden rows,
// and anonymous callers see nothing hidden.
func Resolve(user *models.User) Visibility {
	switch {
	case user == nil:
		return None()
	case user.IsStaff():
		return All()
	default:
		return Only(user.ID)
	}
}

/*
Predicate turns a visibility into a WHERE clause. shown selects the rows that
are not hidden; ownerColumns are the columns that make a hidden row belong to
someone. A nil result means no filtering is needed.
*/
func Predicate(v Visibility, shown sq.Sqlizer, ownerColumns ...string) sq.Sqlizer {
	switch v.kind {
	case KindAll:
		return nil
	case KindOnly:
		or := sq.Or{shown}
		for _, column := range ownerColumns {
			or = append(or, sq.Eq{column: v.ownerID})
		}
		return or
	default:
		return shown
	}
}

// Allows answers the same question as Predicate for a row already in memory.
// owners are the ids that make the row belong to someone.
func Allows(v Visibility, hidden bool, owners ...int) bool {
	if !hidden {
		return true
	}
	switch v.kind {
	case KindAll:
		return true
	case KindOnly:
		for _, owner := range owners {
			if owner == v.ownerID {
				return true
			}
		}
		return false
	default:
		return false
	}
}
