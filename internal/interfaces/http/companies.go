package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
)

type CompaniesHandler struct {
	service *application.CompanyService
}

func NewCompaniesHandler(service *application.CompanyService) *CompaniesHandler {
	return &CompaniesHandler{service: service}
}

type companyRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

func (r companyRequest) input() application.CompanyInput {
	return application.CompanyInput{Name: r.Name, Description: r.Description}
}

func (h *CompaniesHandler) Create(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req companyRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	company, err := h.service.Create(c.Request().Context(), actorID, req.input())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, company)
}

func (h *CompaniesHandler) List(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	companies, err := h.service.List(c.Request().Context(), actorID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, companies)
}

func (h *CompaniesHandler) Get(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	company, err := h.service.Get(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, company)
}

func (h *CompaniesHandler) Update(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req companyRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}
	company, err := h.service.Update(c.Request().Context(), actorID, c.Param("id"), req.input())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, company)
}

// Delete removes the company with its records, groups and grants.
func (h *CompaniesHandler) Delete(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.service.Delete(c.Request().Context(), actorID, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}
