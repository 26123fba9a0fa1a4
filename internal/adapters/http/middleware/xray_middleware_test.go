package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXRayMiddleware_RecordsRequestOnSegment(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/companies/c1", nil), httptest.NewRecorder())
	c.SetPath("/companies/:id")

	var seg *xray.Segment
	h := XRayMiddleware("accountx-test")(func(c echo.Context) error {
		seg = xray.GetSegment(c.Request().Context())
		c.Set(UserIDKey, "alice")
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	require.NoError(t, h(c))
	require.NotNil(t, seg)
	assert.Equal(t, "accountx-test", seg.Name)
	assert.Equal(t, "/companies/:id", seg.Annotations["route"])
	assert.Equal(t, "alice", seg.Annotations["user_id"])
	assert.Equal(t, http.StatusNotFound, seg.HTTP.Response.Status)
	assert.True(t, seg.Error)
	assert.False(t, seg.Fault)
}

func TestXRayMiddleware_MarksFaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/sales", nil), httptest.NewRecorder())

	var seg *xray.Segment
	h := XRayMiddleware("accountx-test")(func(c echo.Context) error {
		seg = xray.GetSegment(c.Request().Context())
		return c.NoContent(http.StatusServiceUnavailable)
	})

	require.NoError(t, h(c))
	assert.True(t, seg.Fault)
	assert.Equal(t, http.MethodPost, seg.HTTP.Request.Method)
}
