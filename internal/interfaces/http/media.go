package http

import (
	"fmt"
	"mime"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
	"accountx/internal/domain"
)

type MediaHandler struct {
	service *application.MediaService
}

func NewMediaHandler(service *application.MediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

// Upload accepts a multipart form with the content in "file" and the owning
// company id in "company".
func (h *MediaHandler) Upload(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	company := c.FormValue("company")
	if company == "" {
		return handleError(c, fmt.Errorf("%w: company is required", domain.ErrInvalidInput))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return handleError(c, fmt.Errorf("%w: file is required", domain.ErrInvalidInput))
	}
	f, err := fh.Open()
	if err != nil {
		return handleError(c, err)
	}
	defer f.Close()

	media, err := h.service.Upload(c.Request().Context(), actorID, application.Upload{
		CompanyID:   company,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, media)
}

func (h *MediaHandler) List(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	media, err := h.service.List(c.Request().Context(), actorID, domain.RecordFilter{CompanyID: c.QueryParam("company")})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, media)
}

func (h *MediaHandler) Meta(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	media, err := h.service.Get(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, media)
}

func (h *MediaHandler) Download(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	media, body, err := h.service.Download(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	defer body.Close()
	disposition := mime.FormatMediaType("inline", map[string]string{"filename": media.OriginalFileName})
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return c.Stream(stdhttp.StatusOK, media.ContentType, body)
}

func (h *MediaHandler) Delete(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if _, err := h.service.Delete(c.Request().Context(), actorID, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}
