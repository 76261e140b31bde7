package website

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/oops"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/google/uuid"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(error)
				var err error
				if ok {
					err = oops.New(maybeError, "Recovered from panic")
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(err)
			}
		}()

		return h(c)
	}
}

// Gives every request an id and a logger that carries it, and reports how
// long the request took.
func trackRequest(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		start := time.Now()

		c.RequestID = uuid.NewString()
		logger := c.Logger.With().
			Str("request_id", c.RequestID).
			Str("method", c.Req.Method).
			Str("path", c.Req.URL.Path).
			Logger()
		c.SetLogger(&logger)

		res := h(c)

		status := res.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		res.Header().Set("X-Request-Id", c.RequestID)
		c.Logger.Info().
			Int("status", status).
			Msg(fmt.Sprintf("Served [%s] %s in %.4fms", c.Req.Method, c.Req.URL.Path, float64(time.Since(start).Nanoseconds())/1000/1000))
		return res
	}
}

// Stores one interaction record.
type interactionRecorder func(ctx context.Context, i tagemdata.NewInteraction) error

/*
Records every request as an interaction once its final status is known. A
failure to record is logged and otherwise ignored.
*/
func logInteractions(record interactionRecorder) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			res := h(c)

			status := res.StatusCode
			if status == 0 {
				status = http.StatusOK
			}
			var userID *int
			if c.CurrentUser != nil {
				userID = &c.CurrentUser.ID
			}

			// the client may already be gone
			err := record(context.WithoutCancel(c), tagemdata.NewInteraction{
				Endpoint: c.Req.RequestURI,
				Origin:   c.GetIP(),
				UserID:   userID,
				Response: status,
			})
			if err != nil {
				c.Logger.Error().Err(err).Msg("failed to log interaction")
			}
			return res
		}
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.Req.RequestURI).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}

// Looks up a user by id. Returns nil if there is no such user.
type userLookup func(ctx context.Context, id int) (*models.User, error)

/*
Identifies the caller from a bearer token. Requests without an Authorization
header continue anonymously. A token that does not verify, or that names a
user who no longer exists, is rejected, and so is a banned user.
*/
func authenticate(key []byte, lookup userLookup) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			header := c.Req.Header.Get("Authorization")
			if header == "" {
				return h(c)
			}

			token, ok := auth.BearerToken(header)
			if !ok {
				return c.ErrorResponse(apierr.Unauthorized("Missing or invalid token"))
			}
			claims, err := auth.ParseToken(key, token)
			if err != nil {
				return c.ErrorResponse(err)
			}

			user, err := lookup(c, claims.UserID)
			if err != nil {
				return c.ErrorResponse(oops.New(err, "failed to get current user"))
			}
			if user == nil {
				return c.ErrorResponse(apierr.Unauthorized("Invalid token"))
			}
			if user.IsBanned {
				return c.ErrorResponse(apierr.Forbidden("Your account has been suspended"))
			}

			c.CurrentUser = user
			logger := c.Logger.With().Int("user_id", user.ID).Logger()
			c.SetLogger(&logger)

			return h(c)
		}
	}
}

// Admits the request if any of the rules pass. Ownership checks are run
// against the id path parameter.
func authorize(rules ...auth.Rule) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			if err := auth.Authorize(c, c.CurrentUser, c.PathParams["id"], rules...); err != nil {
				return c.ErrorResponse(err)
			}
			return h(c)
		}
	}
}

// Binds an ownership check that needs a database to the connection it should use.
func ownedVia(conn db.ConnOrTx, check func(ctx context.Context, dbConn db.ConnOrTx, user *models.User, resourceID int) (bool, error)) auth.OwnershipCheck {
	return func(ctx context.Context, user *models.User, resourceID int) (bool, error) {
		return check(ctx, conn, user, resourceID)
	}
}
