package website

import (
	"fmt"
	"net/http"

	"github.com/clynamic/tagem/src/tagemdata"
)

func ContributionList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.ContributionsQuery{
		Options:   q.pageOptions(),
		ProjectID: q.int("project"),
		UserID:    q.int("user"),
		PostID:    q.int("post"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchContributions(c, c.Conn, c.CurrentUser, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func ContributionGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	contribution, err := tagemdata.FetchContribution(c, c.Conn, c.CurrentUser, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, contribution)
}

func ContributionCreate(c *RequestContext) ResponseData {
	contribution, err := decodeJson[tagemdata.NewContribution](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	id, err := tagemdata.CreateContribution(c, c.Conn, c.CurrentUser, contribution)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.Created(fmt.Sprintf("/contributions/%d", id), id)
}

func InteractionList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.InteractionsQuery{
		Options:  q.pageOptions(),
		Endpoint: q.str("endpoint"),
		Origin:   q.str("origin"),
		UserID:   q.int("user"),
		Response: q.int("response"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchInteractions(c, c.Conn, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func InteractionGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	interaction, err := tagemdata.FetchInteraction(c, c.Conn, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, interaction)
}
