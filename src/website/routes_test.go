package website

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/e621"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

var (
	testAdmin      = &models.User{ID: 1, Name: "admin", Rank: models.RankAdmin}
	testJanitor    = &models.User{ID: 2, Name: "janitor", Rank: models.RankJanitor}
	testMember     = &models.User{ID: 1000, Name: "member", Rank: models.RankMember}
	testOwner      = &models.User{ID: 2000, Name: "owner", Rank: models.RankPrivileged}
	testPrivileged = &models.User{ID: 2001, Name: "someone_else", Rank: models.RankPrivileged}
	testBanned     = &models.User{ID: 3000, Name: "banned", Rank: models.RankPrivileged, IsBanned: true}
	testDeleted    = &models.User{ID: 4242, Name: "deleted", Rank: models.RankMember}
)

type fakeIdentity struct{}

func (fakeIdentity) Authenticate(ctx context.Context, username, password string) (*e621.UserInfo, error) {
	return nil, e621.ErrInvalidCredentials
}

type testServer struct {
	handler http.Handler

	mu           sync.Mutex
	interactions []tagemdata.NewInteraction
}

/*
A server whose database is replaced by fixed users, one project (5, owned by
testOwner) and one comment (7, written by testMember). Only requests that are
decided before a handler touches the database can be tested with it.
*/
func newTestServer(t *testing.T) *testServer {
	s := &testServer{}

	users := map[int]*models.User{}
	for _, u := range []*models.User{testAdmin, testJanitor, testMember, testOwner, testPrivileged, testBanned} {
		users[u.ID] = u
	}

	s.handler = newRoutes(routeDeps{
		key:      testKey,
		lifetime: time.Hour,
		identity: fakeIdentity{},
		hostUrls: []string{"https://tagem.example"},

		lookupUser: func(ctx context.Context, id int) (*models.User, error) {
			return users[id], nil
		},
		recordInteraction: func(ctx context.Context, i tagemdata.NewInteraction) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.interactions = append(s.interactions, i)
			return nil
		},
		ownsProject: func(ctx context.Context, user *models.User, projectID int) (bool, error) {
			if projectID != 5 {
				return false, apierr.NotFoundFor("project", projectID)
			}
			return user.ID == testOwner.ID, nil
		},
		canEditComment: func(ctx context.Context, user *models.User, commentID int) (bool, error) {
			if commentID != 7 {
				return false, apierr.NotFoundFor("comment", commentID)
			}
			return user.ID == testMember.ID, nil
		},
		canModerateComment: func(ctx context.Context, user *models.User, commentID int) (bool, error) {
			if commentID != 7 {
				return false, apierr.NotFoundFor("comment", commentID)
			}
			return user.ID == testMember.ID, nil
		},
	})
	return s
}

func (s *testServer) do(t *testing.T, method, target, body string, user *models.User) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != nil {
		token, err := auth.MintToken(testKey, user, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func TestRequestsRejectedBeforeHandlers(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		user    *models.User
		status  int
		message string
	}{
		{"anonymous cannot create projects", http.MethodPost, "/projects", `{}`, nil, http.StatusUnauthorized, "Missing or invalid token"},
		{"members cannot create projects", http.MethodPost, "/projects", `{}`, testMember, http.StatusForbidden, "Insufficient permissions"},
		{"privileged non-owner cannot edit", http.MethodPut, "/projects/5", `{}`, testPrivileged, http.StatusForbidden, "Insufficient permissions"},
		{"members cannot delete projects", http.MethodDelete, "/projects/5", "", testMember, http.StatusForbidden, "Insufficient permissions"},
		{"missing project wins over janitor rank", http.MethodPut, "/projects/9", `{}`, testJanitor, http.StatusNotFound, "Resource not found"},
		{"non-numeric id", http.MethodPatch, "/projects/abc/restore", "", testJanitor, http.StatusBadRequest, "Missing ID parameter"},
		{"comment edit by someone else", http.MethodPut, "/comments/7", `{"content": "mine now"}`, testOwner, http.StatusForbidden, "Insufficient permissions"},
		{"moderating a missing comment", http.MethodDelete, "/comments/8", "", testAdmin, http.StatusNotFound, "Resource not found"},
		{"janitors cannot read interactions", http.MethodGet, "/interactions", "", testJanitor, http.StatusForbidden, "Insufficient permissions"},
		{"admins get past the gate", http.MethodGet, "/interactions?size=big", "", testAdmin, http.StatusBadRequest, `Invalid value for size: "big"`},
		{"admins only for user edits", http.MethodDelete, "/users/1000", "", testJanitor, http.StatusForbidden, "Insufficient permissions"},
		{"malformed page", http.MethodGet, "/projects?page=two", "", nil, http.StatusBadRequest, `Invalid value for page: "two"`},
		{"malformed order", http.MethodGet, "/comments?order=sideways", "", nil, http.StatusBadRequest, `Unknown sort order "sideways", expected asc or desc`},
		{"malformed filter", http.MethodGet, "/contributions?post=latest", "", testMember, http.StatusBadRequest, `Invalid value for post: "latest"`},
		{"banned users are turned away", http.MethodGet, "/projects", "", testBanned, http.StatusForbidden, "Your account has been suspended"},
		{"tokens for vanished users", http.MethodGet, "/projects", "", testDeleted, http.StatusUnauthorized, "Invalid token"},
		{"unknown route", http.MethodGet, "/nowhere", "", nil, http.StatusNotFound, "No route for GET /nowhere"},
		{"login with bad credentials", http.MethodPost, "/login", `{"username": "someone", "password": "wrong"}`, nil, http.StatusUnauthorized, "Invalid credentials"},
		{"login without credentials", http.MethodPost, "/login", `{"username": " "}`, nil, http.StatusBadRequest, "Missing username or password"},
		{"login without a body", http.MethodPost, "/login", "", nil, http.StatusBadRequest, "Missing request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.do(t, tt.method, tt.target, tt.body, tt.user)
			defer res.Body.Close()

			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.message, errorMessage(t, res))
		})
	}
}

func TestInvalidBearerTokens(t *testing.T) {
	s := newTestServer(t)

	otherKeyToken, err := auth.MintToken([]byte("fedcba9876543210fedcba9876543210"), testAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	expired, err := auth.MintToken(testKey, testAdmin, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		header  string
		message string
	}{
		{"Bearer not.a.token", "Invalid token"},
		{"Bearer " + otherKeyToken, "Invalid token"},
		{"Bearer " + expired, "Invalid token"},
		{"Basic YWRtaW46aHVudGVyMg==", "Missing or invalid token"},
		{"Bearer ", "Missing or invalid token"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.Header.Set("Authorization", tt.header)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)

		res := rec.Result()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, tt.header)
		assert.Equal(t, tt.message, errorMessage(t, res), tt.header)
	}
}

func TestInteractionsAreRecorded(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nowhere?from=test", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	res := s.do(t, http.MethodGet, "/interactions?size=big", "", testAdmin)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = s.do(t, http.MethodGet, "/projects", "", testBanned)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.interactions, 3)

	assert.Equal(t, tagemdata.NewInteraction{
		Endpoint: "/nowhere?from=test",
		Origin:   "203.0.113.7",
		Response: http.StatusNotFound,
	}, s.interactions[0])

	assert.Equal(t, "/interactions?size=big", s.interactions[1].Endpoint)
	assert.Equal(t, "192.0.2.1", s.interactions[1].Origin)
	assert.Equal(t, http.StatusBadRequest, s.interactions[1].Response)
	if assert.NotNil(t, s.interactions[1].UserID) {
		assert.Equal(t, testAdmin.ID, *s.interactions[1].UserID)
	}

	// rejected before the caller was identified
	assert.Nil(t, s.interactions[2].UserID)
	assert.Equal(t, http.StatusForbidden, s.interactions[2].Response)
}

func TestResponsesCarryRequestID(t *testing.T) {
	s := newTestServer(t)

	first := s.do(t, http.MethodGet, "/nowhere", "", nil)
	second := s.do(t, http.MethodGet, "/nowhere", "", nil)

	firstID, err := uuid.Parse(first.Header.Get("X-Request-Id"))
	require.NoError(t, err)
	secondID, err := uuid.Parse(second.Header.Get("X-Request-Id"))
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
}

func TestCorsPreflight(t *testing.T) {
	s := newTestServer(t)

	// Browsers send the requested headers lowercased, sorted and without
	// spaces. rs/cors only accepts that form.
	tests := []struct {
		name    string
		origin  string
		headers string
		allowed string
	}{
		{"localhost, no extra headers", "http://localhost:5173", "", "http://localhost:5173"},
		{"localhost, one header", "http://localhost:5173", "authorization", "http://localhost:5173"},
		{"localhost, browser header list", "http://localhost:5173", "authorization,content-type", "http://localhost:5173"},
		{"configured host", "https://tagem.example", "authorization,content-type", "https://tagem.example"},
		{"unknown host", "https://evil.example", "authorization,content-type", ""},
		{"header list with spaces", "http://localhost:5173", "Authorization, Content-Type", ""},
		{"unsorted header list", "http://localhost:5173", "content-type,authorization", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/projects", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			if tt.headers != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.headers)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			res := rec.Result()
			assert.Equal(t, tt.allowed, res.Header.Get("Access-Control-Allow-Origin"))
			if tt.allowed != "" {
				assert.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))
			}
		})
	}

	t.Run("simple requests are tagged too", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, "http://127.0.0.1:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
