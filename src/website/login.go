package website

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/e621"
	"github.com/clynamic/tagem/src/tagemdata"
)

// Where accounts and their contribution counts come from. *e621.Client is the
// real one.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (*e621.UserInfo, error)
}

var _ IdentityProvider = &e621.Client{}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

/*
Login checks the credentials with the identity provider, registers or
refreshes the local account, and answers with a signed token as plain text.
*/
func Login(key []byte, lifetime time.Duration, identity IdentityProvider) Handler {
	return func(c *RequestContext) ResponseData {
		body, err := decodeJson[loginRequest](c)
		if err != nil {
			return c.ErrorResponse(err)
		}
		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return c.ErrorResponse(apierr.BadRequest(nil, "Missing username or password"))
		}

		info, err := identity.Authenticate(c, body.Username, body.Password)
		if err != nil {
			if !errors.Is(err, e621.ErrInvalidCredentials) {
				c.Logger.Warn().Err(err).Str("username", body.Username).Msg("identity provider could not be asked about login")
			}
			return c.ErrorResponse(apierr.Unauthorized("Invalid credentials"))
		}

		user, err := tagemdata.RegisterOrRefreshUser(c, c.Conn, info.ID, info.Name, info.PostUpdateCount)
		if err != nil {
			return c.ErrorResponse(err)
		}
		if user.IsBanned {
			return c.ErrorResponse(apierr.Forbidden("Your account has been suspended"))
		}

		token, err := auth.MintToken(key, user, lifetime, time.Now())
		if err != nil {
			return c.ErrorResponse(err)
		}

		c.Logger.Info().Int("user_id", user.ID).Str("rank", string(user.Rank)).Msg("user logged in")
		return c.MessageResponse(http.StatusCreated, token)
	}
}
