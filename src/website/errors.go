package website

import (
	"github.com/clynamic/tagem/src/apierr"
)

func FourOhFour(c *RequestContext) ResponseData {
	return c.ErrorResponse(apierr.NotFound("No route for %s %s", c.Req.Method, c.Req.URL.Path))
}
