package website

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/e621"
	"github.com/clynamic/tagem/src/migration"
	"github.com/clynamic/tagem/src/migration/types"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/paged"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedIdentity struct {
	users map[string]*e621.UserInfo
}

func (s *scriptedIdentity) Authenticate(ctx context.Context, username, password string) (*e621.UserInfo, error) {
	info, ok := s.users[username]
	if !ok || password != "hunter2" {
		return nil, e621.ErrInvalidCredentials
	}
	return info, nil
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (a apiClient) do(method, target, token, body string) (*http.Response, []byte) {
	a.t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	res := rec.Result()
	data, err := io.ReadAll(res.Body)
	require.NoError(a.t, err)
	return res, data
}

func (a apiClient) login(username string) string {
	a.t.Helper()
	res, body := a.do(http.MethodPost, "/login", "", fmt.Sprintf(`{"username": %q, "password": "hunter2"}`, username))
	require.Equal(a.t, http.StatusCreated, res.StatusCode, string(body))
	assert.Equal(a.t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
	return string(body)
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(body, &result), string(body))
	return result
}

// Needs a scratch database, named by TAGEM_TEST_DATABASE. Ids are derived from
// the clock so that the test can run against the same database repeatedly.
func TestApiAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("TAGEM_TEST_DATABASE")
	if dsn == "" {
		t.Skip("TAGEM_TEST_DATABASE is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, migration.Migrate(ctx, pool, types.MigrationVersion{}))

	base := int(time.Now().UnixNano()%1_000_000_000) + 10_000
	identity := &scriptedIdentity{users: map[string]*e621.UserInfo{
		"creator":   {ID: base, Name: fmt.Sprintf("creator_%d", base), PostUpdateCount: 1500},
		"member":    {ID: base + 1, Name: fmt.Sprintf("member_%d", base), PostUpdateCount: 150},
		"lurker":    {ID: base + 2, Name: fmt.Sprintf("lurker_%d", base), PostUpdateCount: 3},
		"rival":     {ID: base + 4, Name: fmt.Sprintf("rival_%d", base), PostUpdateCount: 1200},
		"bystander": {ID: base + 5, Name: fmt.Sprintf("bystander_%d", base), PostUpdateCount: 150},
	}}
	api := apiClient{t: t, handler: NewWebsiteRoutes(pool, testKey, identity)}

	_, err = tagemdata.CreateUser(ctx, pool, tagemdata.NewUser{ID: base + 3, Name: fmt.Sprintf("admin_%d", base), Rank: models.RankAdmin})
	require.NoError(t, err)
	admin, err := tagemdata.FetchUser(ctx, pool, base+3)
	require.NoError(t, err)
	adminToken, err := auth.MintToken(testKey, admin, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = tagemdata.CreateUser(ctx, pool, tagemdata.NewUser{ID: base + 6, Name: fmt.Sprintf("janitor_%d", base), Rank: models.RankJanitor})
	require.NoError(t, err)
	janitorUser, err := tagemdata.FetchUser(ctx, pool, base+6)
	require.NoError(t, err)
	janitor, err := auth.MintToken(testKey, janitorUser, time.Hour, time.Now())
	require.NoError(t, err)

	res, body := api.do(http.MethodPost, "/login", "", `{"username": "lurker", "password": "hunter2"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, string(body), "Not enough contributions to register")

	creator := api.login("creator")
	member := api.login("member")
	rival := api.login("rival")
	bystander := api.login("bystander")

	res, body = api.do(http.MethodGet, fmt.Sprintf("/users/%d", base), "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.RankPrivileged, decodeBody[models.User](t, body).Rank)

	// projects
	newProject := fmt.Sprintf(`{
		"name": "Fix tails",
		"meta": "tails_%d",
		"mode": "One",
		"tags": ["tail"],
		"options": [{"name": "Fluffy", "add": ["fluffy_tail"], "remove": []}]
	}`, base)

	res, _ = api.do(http.MethodPost, "/projects", member, newProject)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = api.do(http.MethodPost, "/projects", creator, newProject)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	projectID := decodeBody[int](t, body)
	assert.Equal(t, fmt.Sprintf("/projects/%d", projectID), res.Header.Get("Location"))
	projectPath := res.Header.Get("Location")

	res, _ = api.do(http.MethodPut, projectPath, creator, `{"description": "Tails that need a closer look", "version": 1}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = api.do(http.MethodPut, projectPath, creator, `{"description": "Stale", "version": 1}`)
	assert.Equal(t, http.StatusConflict, res.StatusCode, string(body))

	res, _ = api.do(http.MethodPut, projectPath, member, `{"description": "Not mine"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	// private projects do not exist for privileged non-owners, on any route
	res, body = api.do(http.MethodPost, "/projects", creator, fmt.Sprintf(`{"name": "Secret", "meta": "secret_%d", "mode": "Many", "isPrivate": true}`, base))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	secretPath := res.Header.Get("Location")

	res, _ = api.do(http.MethodGet, secretPath, rival, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, body = api.do(http.MethodPut, secretPath, rival, `{"description": "Found it"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, string(body), "Resource not found")
	res, _ = api.do(http.MethodDelete, secretPath, rival, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = api.do(http.MethodPut, projectPath, rival, `{"description": "Not mine either"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = api.do(http.MethodPut, secretPath, janitor, `{"description": "Looked over"}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = api.do(http.MethodPut, secretPath, creator, `{"description": "Still secret"}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = api.do(http.MethodGet, projectPath, "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	project := decodeBody[models.Project](t, body)
	assert.Equal(t, 2, project.Version)
	assert.Equal(t, "Tails that need a closer look", project.Description)
	assert.Equal(t, []string{}, project.Conditionals)
	assert.NotNil(t, project.UpdatedAt)

	res, body = api.do(http.MethodGet, fmt.Sprintf("/project-versions?project=%d&sort=version&order=asc", projectID), "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	versions := decodeBody[paged.Page[models.ProjectVersion]](t, body)
	require.Equal(t, 2, versions.Total)
	assert.Equal(t, 1, versions.Items[0].Version)
	assert.Equal(t, 2, versions.Items[1].Version)

	res, body = api.do(http.MethodGet, fmt.Sprintf("/projects?tags=tail&user=%d", base), "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, decodeBody[paged.Page[models.Project]](t, body).Total)

	res, _ = api.do(http.MethodGet, "/projects?sort=popularity", "", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// comments
	res, body = api.do(http.MethodPost, "/comments", member, fmt.Sprintf(`{"projectId": %d, "content": "Is a tuft a tail?"}`, projectID))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	commentID := decodeBody[int](t, body)
	commentPath := res.Header.Get("Location")
	commentsOfProject := fmt.Sprintf("/comments?project=%d&size=0", projectID)
	listed := func(token string) bool {
		t.Helper()
		res, body := api.do(http.MethodGet, commentsOfProject, token, "")
		require.Equal(t, http.StatusOK, res.StatusCode)
		for _, c := range decodeBody[paged.Page[models.Comment]](t, body).Items {
			if c.ID == commentID {
				return true
			}
		}
		return false
	}

	res, _ = api.do(http.MethodPut, commentPath, member, `{"content": "Is a tuft a tail? Asking for a friend."}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = api.do(http.MethodGet, commentPath, "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	comment := decodeBody[models.Comment](t, body)
	assert.Equal(t, "Is a tuft a tail? Asking for a friend.", comment.Content)
	assert.Nil(t, comment.UpdatedAt, "edits right after posting are not marked")

	res, _ = api.do(http.MethodDelete, commentPath, creator, "")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res, _ = api.do(http.MethodDelete, commentPath, member, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = api.do(http.MethodGet, commentPath, "", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = api.do(http.MethodGet, commentPath, member, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = api.do(http.MethodGet, commentPath, bystander, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = api.do(http.MethodGet, commentPath, janitor, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, listed(""))
	assert.False(t, listed(bystander))
	assert.True(t, listed(member))
	assert.True(t, listed(janitor))

	res, _ = api.do(http.MethodPatch, commentPath+"/restore", member, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = api.do(http.MethodGet, commentPath, "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// contributions
	res, body = api.do(http.MethodPost, "/contributions", member, fmt.Sprintf(`{"projectId": %d, "postId": 12345}`, projectID))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	res, body = api.do(http.MethodGet, res.Header.Get("Location"), "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	contribution := decodeBody[models.Contribution](t, body)
	assert.Equal(t, 2, contribution.ProjectVersion)
	assert.Equal(t, base+1, contribution.UserID)

	// soft delete
	res, _ = api.do(http.MethodDelete, projectPath, creator, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = api.do(http.MethodGet, projectPath, "", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, body = api.do(http.MethodGet, projectPath, creator, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, decodeBody[models.Project](t, body).IsDeleted)
	res, _ = api.do(http.MethodGet, fmt.Sprintf("/contributions?project=%d", projectID), member, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// admin routes
	res, body = api.do(http.MethodPatch, fmt.Sprintf("/users/%d/rank", base+1), adminToken, `"Janitor"`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, "User permissions were updated", string(body))

	res, body = api.do(http.MethodDelete, fmt.Sprintf("/users/%d", base+1), adminToken, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "User was banned", string(body))
	res, body = api.do(http.MethodGet, "/projects", member, "")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, string(body), "Your account has been suspended")

	res, body = api.do(http.MethodPatch, fmt.Sprintf("/users/%d/restore", base+1), adminToken, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "User was restored", string(body))

	res, body = api.do(http.MethodGet, fmt.Sprintf("/interactions?user=%d&size=0", base+1), adminToken, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	interactions := decodeBody[paged.Page[models.Interaction]](t, body)
	assert.NotZero(t, interactions.Total)
	assert.Equal(t, 1, interactions.Pages)
}
