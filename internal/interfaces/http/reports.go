package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
)

type ReportsHandler struct {
	service *application.ReportService
}

func NewReportsHandler(service *application.ReportService) *ReportsHandler {
	return &ReportsHandler{service: service}
}

// Vat serves GET /reports/vat?cid=&after=&before= with dates as YYYY-MM-DD.
func (h *ReportsHandler) Vat(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	after, err := parseDate(c.QueryParam("after"))
	if err != nil {
		return handleError(c, err)
	}
	before, err := parseDate(c.QueryParam("before"))
	if err != nil {
		return handleError(c, err)
	}
	report, err := h.service.Vat(c.Request().Context(), actorID, c.QueryParam("cid"), after, before)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, report)
}
