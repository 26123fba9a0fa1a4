package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
)

type UsersHandler struct{ service *application.UserService }

func NewUsersHandler(service *application.UserService) *UsersHandler {
	return &UsersHandler{service: service}
}

type userRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

func (r userRequest) input() application.UserInput {
	return application.UserInput{Username: r.Username, Email: r.Email, FirstName: r.FirstName, LastName: r.LastName}
}

type groupsRequest struct {
	Groups []string `json:"groups" validate:"dive,required"`
}

// Register creates the profile of the authenticated identity.
func (h *UsersHandler) Register(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req userRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	user, err := h.service.Register(c.Request().Context(), actorID, req.input())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, user)
}

func (h *UsersHandler) Create(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		userRequest
		groupsRequest
	}
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	user, err := h.service.Create(c.Request().Context(), actorID, req.input(), req.Groups)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, user)
}

func (h *UsersHandler) List(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	users, err := h.service.List(c.Request().Context(), actorID, c.QueryParam("cid"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, users)
}

func (h *UsersHandler) Me(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	user, err := h.service.Me(c.Request().Context(), actorID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

func (h *UsersHandler) Get(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	user, err := h.service.Get(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

func (h *UsersHandler) Update(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req userRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	user, err := h.service.Update(c.Request().Context(), actorID, c.Param("id"), req.input())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

func (h *UsersHandler) SetGroups(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req groupsRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	user, err := h.service.SetGroups(c.Request().Context(), actorID, c.Param("id"), req.Groups)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

func (h *UsersHandler) Delete(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.service.Delete(c.Request().Context(), actorID, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}
