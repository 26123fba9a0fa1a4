package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"

	"accountx/internal/ports"
)

type LambdaHandler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// NewLambdaHandler serves API Gateway HTTP API (payload v2) events through the router.
func NewLambdaHandler(e *echo.Echo, logger ports.Logger) LambdaHandler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		if err != nil {
			logger.Error(ctx, "lambda proxy failed", "route_key", req.RouteKey, "request_id", req.RequestContext.RequestID, "error", err)
		}
		return resp, err
	}
}
