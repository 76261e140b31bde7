// Package e621 talks to the e621 API, which is where user accounts live.
package e621

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/logging"
	"github.com/clynamic/tagem/src/oops"
)

var ErrInvalidCredentials = errors.New("e621 rejected the credentials")

type Client struct {
	BaseUrl   string
	UserAgent string
	HTTP      *http.Client
}

func NewClient(cfg config.E621Config) *Client {
	return &Client{
		BaseUrl:   cfg.BaseUrl,
		UserAgent: cfg.UserAgent,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

type UserInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// Tag edits the user has made, which is what earns them a rank here.
	PostUpdateCount int `json:"post_update_count"`
}

/*
Authenticate checks a username and API key against e621 by fetching the
user's own profile with them. Any non-2xx answer means the credentials were
wrong, and yields ErrInvalidCredentials.
*/
func (c *Client) Authenticate(ctx context.Context, username, password string) (*UserInfo, error) {
	const name = "Get User"

	path := fmt.Sprintf("%s/users/%s.json", c.BaseUrl, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, oops.New(err, "failed to build e621 request")
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, oops.New(err, "failed to reach e621")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		logging.ExtractLogger(ctx).Debug().
			Str("name", name).
			Int("status", res.StatusCode).
			Str("username", username).
			Msg("e621 refused login")
		return nil, ErrInvalidCredentials
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, oops.New(err, "failed to read e621 response")
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, oops.New(err, "failed to unmarshal e621 user")
	}
	if info.ID == 0 {
		return nil, oops.New(nil, "e621 returned a user without an id")
	}
	return &info, nil
}
