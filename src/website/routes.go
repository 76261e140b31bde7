package website

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Everything the routes need from outside the request.
type routeDeps struct {
	conn     *pgxpool.Pool
	key      []byte
	lifetime time.Duration
	identity IdentityProvider
	hostUrls []string

	lookupUser         userLookup
	recordInteraction  interactionRecorder
	ownsProject        auth.OwnershipCheck
	canEditComment     auth.OwnershipCheck
	canModerateComment auth.OwnershipCheck
}

func NewWebsiteRoutes(conn *pgxpool.Pool, key []byte, identity IdentityProvider) http.Handler {
	return newRoutes(routeDeps{
		conn:     conn,
		key:      key,
		lifetime: config.Config.Auth.TokenLifetime,
		identity: identity,
		hostUrls: config.Config.HostUrls,

		lookupUser: func(ctx context.Context, id int) (*models.User, error) {
			return tagemdata.FetchUserOrNil(ctx, conn, id)
		},
		recordInteraction: func(ctx context.Context, i tagemdata.NewInteraction) error {
			_, err := tagemdata.LogInteraction(ctx, conn, i)
			return err
		},
		ownsProject:        ownedVia(conn, tagemdata.UserOwnsProject),
		canEditComment:     ownedVia(conn, tagemdata.UserCanEditComment),
		canModerateComment: ownedVia(conn, tagemdata.UserCanModerateComment),
	})
}

func route(pattern string) *regexp.Regexp {
	return regexp.MustCompile("^" + pattern + "$")
}

const idParam = `(?P<id>[^/]+)`

func newRoutes(deps routeDeps) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) ResponseData {
					c.Conn = deps.conn
					return h(c)
				}
			},
			trackRequest,
			logInteractions(deps.recordInteraction),
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			authenticate(deps.key, deps.lookupUser),
		},
	}

	admins := routes.WithMiddleware(authorize(auth.Ranked(models.RankAdmin, nil)))
	members := routes.WithMiddleware(authorize(auth.RankedOrHigher(models.RankMember, nil)))
	creators := routes.WithMiddleware(authorize(auth.RankedOrHigher(models.RankPrivileged, nil)))
	projectEditors := routes.WithMiddleware(authorize(
		auth.Ranked(models.RankPrivileged, deps.ownsProject),
		auth.RankedOrHigher(models.RankJanitor, nil),
	))
	commentEditors := routes.WithMiddleware(authorize(
		auth.RankedOrHigher(models.RankMember, deps.canEditComment),
	))
	commentModerators := routes.WithMiddleware(authorize(
		auth.RankedOrHigher(models.RankMember, deps.canModerateComment),
		auth.RankedOrHigher(models.RankJanitor, nil),
	))

	routes.POST(route(`/login`), Login(deps.key, deps.lifetime, deps.identity))

	routes.GET(route(`/users`), UserList)
	routes.GET(route(`/users/`+idParam), UserGet)
	admins.PATCH(route(`/users/`+idParam), UserPatch)
	admins.PATCH(route(`/users/`+idParam+`/rank`), UserSetRank)
	admins.DELETE(route(`/users/`+idParam), UserBan)
	admins.PATCH(route(`/users/`+idParam+`/restore`), UserRestore)

	routes.GET(route(`/projects`), ProjectList)
	routes.GET(route(`/projects/`+idParam), ProjectGet)
	creators.POST(route(`/projects`), ProjectCreate)
	projectEditors.PUT(route(`/projects/`+idParam), ProjectUpdate)
	projectEditors.DELETE(route(`/projects/`+idParam), ProjectDelete)
	projectEditors.PATCH(route(`/projects/`+idParam+`/restore`), ProjectRestore)

	routes.GET(route(`/project-versions`), ProjectVersionList)
	routes.GET(route(`/project-versions/`+idParam), ProjectVersionGet)

	routes.GET(route(`/comments`), CommentList)
	routes.GET(route(`/comments/`+idParam), CommentGet)
	members.POST(route(`/comments`), CommentCreate)
	commentEditors.PUT(route(`/comments/`+idParam), CommentEdit)
	commentModerators.DELETE(route(`/comments/`+idParam), CommentHide)
	commentModerators.PATCH(route(`/comments/`+idParam+`/restore`), CommentRestore)

	routes.GET(route(`/contributions`), ContributionList)
	routes.GET(route(`/contributions/`+idParam), ContributionGet)
	members.POST(route(`/contributions`), ContributionCreate)

	admins.GET(route(`/interactions`), InteractionList)
	admins.GET(route(`/interactions/`+idParam), InteractionGet)

	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	return corsPolicy(deps.hostUrls).Handler(router)
}
