package website

import (
	"net/http"

	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
)

func UserList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.UsersQuery{
		Options: q.pageOptions(),
		Name:    q.str("name"),
		Rank:    q.rank("rank"),
		Banned:  q.bool("banned"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchUsers(c, c.Conn, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func UserGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	user, err := tagemdata.FetchUser(c, c.Conn, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, user)
}

func UserPatch(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}
	update, err := decodeJson[tagemdata.UserUpdate](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.UpdateUser(c, c.Conn, id, update); err != nil {
		return c.ErrorResponse(err)
	}
	user, err := tagemdata.FetchUser(c, c.Conn, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("target_user", id).Msg("user updated")
	return c.JsonResponse(http.StatusOK, user)
}

func UserSetRank(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}
	rank, err := decodeJson[models.Rank](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.UpdateUser(c, c.Conn, id, tagemdata.UserUpdate{Rank: &rank}); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("target_user", id).Str("rank", string(rank)).Msg("user rank changed")
	return c.MessageResponse(http.StatusOK, "User permissions were updated")
}

func UserBan(c *RequestContext) ResponseData {
	return setUserBanned(c, true, "User was banned")
}

func UserRestore(c *RequestContext) ResponseData {
	return setUserBanned(c, false, "User was restored")
}

func setUserBanned(c *RequestContext, banned bool, message string) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.SetUserBanned(c, c.Conn, id, banned); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("target_user", id).Bool("banned", banned).Msg("user ban changed")
	return c.MessageResponse(http.StatusOK, message)
}
