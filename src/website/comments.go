package website

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clynamic/tagem/src/tagemdata"
)

func CommentList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.CommentsQuery{
		Options:   q.pageOptions(),
		UserID:    q.int("user"),
		ProjectID: q.int("project"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchComments(c, c.Conn, c.CurrentUser, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func CommentGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	comment, err := tagemdata.FetchComment(c, c.Conn, c.CurrentUser, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, comment)
}

func CommentCreate(c *RequestContext) ResponseData {
	comment, err := decodeJson[tagemdata.NewComment](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	id, err := tagemdata.CreateComment(c, c.Conn, c.CurrentUser, comment)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.Created(fmt.Sprintf("/comments/%d", id), id)
}

type commentEdit struct {
	Content string `json:"content"`
}

func CommentEdit(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}
	edit, err := decodeJson[commentEdit](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.EditComment(c, c.Conn, id, edit.Content, time.Now()); err != nil {
		return c.ErrorResponse(err)
	}
	return c.NoContent()
}

func CommentHide(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.HideComment(c, c.Conn, id, c.CurrentUser.ID); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("comment_id", id).Msg("comment hidden")
	return c.NoContent()
}

func CommentRestore(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.RestoreComment(c, c.Conn, id); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("comment_id", id).Msg("comment restored")
	return c.NoContent()
}
