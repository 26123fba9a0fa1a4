package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens one segment per request and records the route, the
// acting user and the final status on it.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)

			if err := next(c); err != nil {
				c.Error(err)
			}

			_ = seg.AddAnnotation("route", c.Path())
			if userID := UserID(c); userID != "" {
				_ = seg.AddAnnotation("user_id", userID)
			}
			status := c.Response().Status
			seg.Lock()
			httpData := seg.GetHTTP()
			httpData.GetRequest().Method = req.Method
			httpData.GetRequest().URL = req.URL.Path
			httpData.GetResponse().Status = status
			switch {
			case status >= 500:
				seg.Fault = true
			case status == 429:
				seg.Throttle = true
			case status >= 400:
				seg.Error = true
			}
			seg.Unlock()
			seg.Close(nil)
			return nil
		}
	}
}
