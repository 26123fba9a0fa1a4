package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
)

type GroupsHandler struct {
	service *application.MembershipService
}

func NewGroupsHandler(service *application.MembershipService) *GroupsHandler {
	return &GroupsHandler{service: service}
}

// List returns the groups the actor manages, or with ?cid= the groups holding
// permissions on that company.
func (h *GroupsHandler) List(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var (
		groups []application.GroupDetails
		err    error
	)
	if cid := c.QueryParam("cid"); cid != "" {
		groups, err = h.service.ListForCompany(c.Request().Context(), actorID, cid)
	} else {
		groups, err = h.service.ListManageable(c.Request().Context(), actorID)
	}
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, groups)
}

func (h *GroupsHandler) Get(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	group, err := h.service.Get(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, group)
}

func (h *GroupsHandler) AddMember(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	group, err := h.service.AddMember(c.Request().Context(), actorID, c.Param("id"), c.Param("user_id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, group)
}

func (h *GroupsHandler) RemoveMember(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	group, err := h.service.RemoveMember(c.Request().Context(), actorID, c.Param("id"), c.Param("user_id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, group)
}
