package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
	"accountx/internal/domain"
)

type AuthorizationHandler struct {
	evaluator *application.Evaluator
}

func NewAuthorizationHandler(evaluator *application.Evaluator) *AuthorizationHandler {
	return &AuthorizationHandler{evaluator: evaluator}
}

// Authorize answers whether the caller holds the permission kind on the object.
func (h *AuthorizationHandler) Authorize(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Kind     string `json:"kind" validate:"required"`
		ObjectID string `json:"object_id" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	perm, err := domain.ParsePermission(req.Kind)
	if err != nil {
		return handleError(c, err)
	}
	allowed, err := h.evaluator.Check(c.Request().Context(), actorID, perm, req.ObjectID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]bool{"allowed": allowed})
}
