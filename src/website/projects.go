package website

import (
	"fmt"
	"net/http"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
)

func ProjectList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.ProjectsQuery{
		Options:     q.pageOptions(),
		UserID:      q.int("user"),
		Name:        q.str("name"),
		Description: q.str("description"),
		Guidelines:  q.str("guidelines"),
		Search:      q.str("search"),
		Tags:        q.list("tags"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchProjects(c, c.Conn, c.CurrentUser, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func ProjectGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	project, err := tagemdata.FetchProject(c, c.Conn, c.CurrentUser, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, project)
}

/*
Creates a project owned by the caller. Only admins may create a project on
someone else's behalf.
*/
func ProjectCreate(c *RequestContext) ResponseData {
	project, err := decodeJson[tagemdata.NewProject](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if project.UserID == 0 {
		project.UserID = c.CurrentUser.ID
	} else if project.UserID != c.CurrentUser.ID && c.CurrentUser.Rank != models.RankAdmin {
		return c.ErrorResponse(apierr.Forbidden("Insufficient permissions"))
	}

	id, err := tagemdata.CreateProject(c, c.Conn, project)
	if err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("project_id", id).Msg("project created")
	return c.Created(fmt.Sprintf("/projects/%d", id), id)
}

func ProjectUpdate(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}
	update, err := decodeJson[tagemdata.ProjectUpdate](c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	project, err := tagemdata.UpdateProject(c, c.Conn, id, update)
	if err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("project_id", id).Int("version", project.Version).Msg("project updated")
	return c.NoContent()
}

func ProjectDelete(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.DeleteProject(c, c.Conn, id); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("project_id", id).Msg("project deleted")
	return c.NoContent()
}

func ProjectRestore(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	if err := tagemdata.RestoreProject(c, c.Conn, id); err != nil {
		return c.ErrorResponse(err)
	}
	c.Logger.Info().Int("project_id", id).Msg("project restored")
	return c.NoContent()
}

func ProjectVersionList(c *RequestContext) ResponseData {
	q := newQueryReader(c)
	query := tagemdata.ProjectVersionsQuery{
		Options:   q.pageOptions(),
		ProjectID: q.int("project"),
		Version:   q.int("version"),
	}
	if q.err != nil {
		return c.ErrorResponse(q.err)
	}

	page, err := tagemdata.FetchProjectVersions(c, c.Conn, c.CurrentUser, query)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, page)
}

func ProjectVersionGet(c *RequestContext) ResponseData {
	id, err := pathID(c)
	if err != nil {
		return c.ErrorResponse(err)
	}

	version, err := tagemdata.FetchProjectVersion(c, c.Conn, c.CurrentUser, id)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return c.JsonResponse(http.StatusOK, version)
}
