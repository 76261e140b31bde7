package visibility

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, None(), Resolve(nil))
	assert.Equal(t, Only(5), Resolve(&models.User{ID: 5, Rank: models.RankMember}))
	assert.Equal(t, Only(6), Resolve(&models.User{ID: 6, Rank: models.RankPrivileged}))
	assert.Equal(t, All(), Resolve(&models.User{ID: 7, Rank: models.RankJanitor}))
	assert.Equal(t, All(), Resolve(&models.User{ID: 8, Rank: models.RankAdmin}))
}

func TestPredicate(t *testing.T) {
	shown := sq.Expr("hidden_by IS NULL")

	t.Run("none", func(t *testing.T) {
		sql, args, err := Predicate(None(), shown, "user_id").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "hidden_by IS NULL", sql)
		assert.Empty(t, args)
	})
	t.Run("only", func(t *testing.T) {
		sql, args, err := Predicate(Only(3), shown, "user_id", "hidden_by").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "(hidden_by IS NULL OR user_id = ? OR hidden_by = ?)", sql)
		assert.Equal(t, []any{3, 3}, args)
	})
	t.Run("all", func(t *testing.T) {
		assert.Nil(t, Predicate(All(), shown, "user_id"))
	})
}

func TestAllows(t *testing.T) {
	tests := []struct {
		name    string
		v       Visibility
		hidden  bool
		owners  []int
		allowed bool
	}{
		{"shown rows are always visible", None(), false, nil, true},
		{"anonymous cannot see hidden", None(), true, []int{1}, false},
		{"owner sees own hidden", Only(1), true, []int{1}, true},
		{"hider sees what they hid", Only(2), true, []int{1, 2}, true},
		{"stranger cannot see hidden", Only(3), true, []int{1, 2}, false},
		{"staff sees everything", All(), true, []int{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, Allows(tt.v, tt.hidden, tt.owners...))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "None", None().String())
	assert.Equal(t, "Only(4)", Only(4).String())
	assert.Equal(t, "All", All().String())
	assert.Equal(t, KindOnly, Only(4).Kind())
	assert.Equal(t, 4, Only(4).OwnerID())
}
