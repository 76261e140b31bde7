package e621

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clynamic/tagem/src/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/binaryfloof.json", r.URL.Path)
		assert.Equal(t, "tagem/test", r.Header.Get("User-Agent"))

		user, pass, ok := r.BasicAuth()
		if !ok || user != "binaryfloof" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1234, "name": "binaryfloof", "post_update_count": 1500, "level": 20}`))
	}))
	defer server.Close()

	client := NewClient(config.E621Config{BaseUrl: server.URL, UserAgent: "tagem/test"})

	t.Run("valid credentials", func(t *testing.T) {
		info, err := client.Authenticate(context.Background(), "binaryfloof", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, &UserInfo{ID: 1234, Name: "binaryfloof", PostUpdateCount: 1500}, info)
	})
	t.Run("invalid credentials", func(t *testing.T) {
		_, err := client.Authenticate(context.Background(), "binaryfloof", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticateBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>down for maintenance</html>`))
	}))
	defer server.Close()

	client := NewClient(config.E621Config{BaseUrl: server.URL})
	_, err := client.Authenticate(context.Background(), "someone", "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(config.E621Config{BaseUrl: url})
	_, err := client.Authenticate(context.Background(), "someone", "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
