package tagemdata

import (
	"testing"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/paged"
	"github.com/clynamic/tagem/src/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	anonymous = (*models.User)(nil)
	member    = &models.User{ID: 3, Name: "member", Rank: models.RankMember}
	janitor   = &models.User{ID: 9, Name: "janitor", Rank: models.RankJanitor}
)

func TestProjectVisibility(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		sql, args, err := paged.Psql.Select("id").From("project").Where(projectVisibility(anonymous)[0]).Where(projectVisibility(anonymous)[1]).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM project WHERE is_deleted = $1 AND is_private = $2", sql)
		assert.Equal(t, []any{false, false}, args)
	})
	t.Run("member", func(t *testing.T) {
		where := projectVisibility(member)
		sql, args, err := paged.Psql.Select("id").From("project").Where(where[0]).Where(where[1]).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM project WHERE (is_deleted = $1 OR user_id = $2) AND (is_private = $3 OR user_id = $4)", sql)
		assert.Equal(t, []any{false, 3, false, 3}, args)
	})
	t.Run("janitor", func(t *testing.T) {
		for _, w := range projectVisibility(janitor) {
			assert.Nil(t, w)
		}
	})
}

func TestVisibleProjectIDs(t *testing.T) {
	assert.Nil(t, visibleProjectIDs(janitor))

	sql, args, err := paged.Psql.Select("id").From("contribution").
		Where(visibleProjectIDs(member)).
		Where("post_id = ?", 12).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM contribution WHERE project_id IN (SELECT id FROM project WHERE ((is_deleted = $1 OR user_id = $2) AND (is_private = $3 OR user_id = $4))) AND post_id = $5",
		sql,
	)
	assert.Equal(t, []any{false, 3, false, 3, 12}, args)
}

func TestCommentVisibility(t *testing.T) {
	sql, _, err := commentVisibility(anonymous).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "hidden_by IS NULL", sql)

	sql, args, err := commentVisibility(member).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(hidden_by IS NULL OR user_id = ? OR hidden_by = ?)", sql)
	assert.Equal(t, []any{3, 3}, args)

	assert.Nil(t, commentVisibility(janitor))
}

func TestProjectFilters(t *testing.T) {
	q := ProjectsQuery{
		UserID: utils.P(4),
		Search: "fox",
		Tags:   []string{"fluffy", "tail"},
	}
	sel := paged.Psql.Select("id").From("project")
	for _, w := range q.filters() {
		sel = sel.Where(w)
	}
	sql, args, err := sel.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM project WHERE user_id = $1 AND (name LIKE $2 OR description LIKE $3 OR guidelines LIKE $4) AND tags @> $5::jsonb AND tags @> $6::jsonb",
		sql,
	)
	assert.Equal(t, []any{4, "%fox%", "%fox%", "%fox%", `["fluffy"]`, `["tail"]`}, args)

	assert.Empty(t, ProjectsQuery{}.filters())
}

func TestTagContainedEncodesJSON(t *testing.T) {
	_, args, err := tagContained(`say "hi"`).ToSql()
	require.NoError(t, err)
	assert.Equal(t, []any{`["say \"hi\""]`}, args)
}

func TestProjectUpdateValues(t *testing.T) {
	mode := models.SelectionModeMany
	u := ProjectUpdate{
		Name:      utils.P("Renamed"),
		Mode:      &mode,
		Tags:      []string{},
		IsPrivate: utils.P(true),
	}
	assert.Equal(t, paged.Values{
		"name":       "Renamed",
		"mode":       models.SelectionModeMany,
		"tags":       []string{},
		"is_private": true,
	}, u.values())

	assert.Empty(t, (&ProjectUpdate{}).values())
}

func TestNewProjectValidate(t *testing.T) {
	valid := NewProject{Name: "Gender", Meta: "gender", Mode: models.SelectionModeOne}
	assert.NoError(t, valid.Validate())

	for name, p := range map[string]NewProject{
		"no name": {Meta: "gender", Mode: models.SelectionModeOne},
		"no meta": {Name: "Gender", Mode: models.SelectionModeOne},
		"no mode": {Name: "Gender", Meta: "gender"},
	} {
		err := p.Validate()
		assert.True(t, apierr.Is(err, apierr.KindBadRequest), name)
	}
}

func TestCommentPermissions(t *testing.T) {
	tests := []struct {
		name     string
		comment  models.Comment
		user     int
		edit     bool
		moderate bool
	}{
		{"author of shown comment", models.Comment{UserID: 1}, 1, true, true},
		{"stranger on shown comment", models.Comment{UserID: 1}, 2, false, false},
		{"author who hid their own comment", models.Comment{UserID: 1, HiddenBy: utils.P(1)}, 1, true, true},
		{"author of comment hidden by staff", models.Comment{UserID: 1, HiddenBy: utils.P(9)}, 1, false, false},
		{"staff who hid the comment", models.Comment{UserID: 1, HiddenBy: utils.P(9)}, 9, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.edit, CanEditComment(&tt.comment, tt.user))
			assert.Equal(t, tt.moderate, CanModerateComment(&tt.comment, tt.user))
		})
	}
}

func TestCommentEditWindow(t *testing.T) {
	posted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := models.Comment{CreatedAt: posted}
	assert.False(t, c.EditIsVisible(posted.Add(2*time.Minute)))
	assert.False(t, c.EditIsVisible(posted.Add(models.CommentNinjaEditWindow)))
	assert.True(t, c.EditIsVisible(posted.Add(6*time.Minute)))
}

func TestInteractionFilters(t *testing.T) {
	q := InteractionsQuery{Endpoint: "/projects", Response: utils.P(404)}
	sel := paged.Psql.Select("id").From("interaction")
	for _, w := range q.filters() {
		sel = sel.Where(w)
	}
	sql, args, err := sel.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM interaction WHERE endpoint = $1 AND response = $2", sql)
	assert.Equal(t, []any{"/projects", 404}, args)
}
