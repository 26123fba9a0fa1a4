// Package app assembles the service from configuration; the cmd entry points
// only differ in how they serve the resulting router.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	adaptermiddleware "accountx/internal/adapters/http/middleware"
	"accountx/internal/application"
	"accountx/internal/infrastructure/auth"
	"accountx/internal/infrastructure/blob"
	"accountx/internal/infrastructure/config"
	"accountx/internal/infrastructure/dynamodb"
	"accountx/internal/infrastructure/memory"
	"accountx/internal/infrastructure/metrics"
	"accountx/internal/infrastructure/policyfile"
	"accountx/internal/infrastructure/postgres"
	httpiface "accountx/internal/interfaces/http"
	"accountx/internal/ports"
)

const segmentName = "accountx-http"

type App struct {
	Echo    *echo.Echo
	closers []func()
}

// Close releases the connections opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func Build(ctx context.Context, cfg *config.Config, logger ports.Logger) (*App, error) {
	a := &App{}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, err := openBlobs(ctx, cfg.Media)
	if err != nil {
		a.Close()
		return nil, err
	}
	policy, err := policyfile.Load(cfg.Policy.File)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		recorder       ports.Metrics
		httpMetrics    *adaptermiddleware.HTTPMetrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			a.Close()
			return nil, err
		}
		httpMetrics, err = adaptermiddleware.NewHTTPMetrics(adaptermiddleware.HTTPMetricsOptions{Registerer: reg})
		if err != nil {
			a.Close()
			return nil, err
		}
		recorder, metricsHandler = rec, rec.Handler()
	}

	groups := application.NewGroupService(store, logger)
	grants := application.NewGrantService(store)
	evaluator := application.NewEvaluator(store, grants, logger, recorder, cfg.Auth.SuperuserIDs...)
	provisioner, err := application.NewProvisioner(policy, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps := application.Dependencies{
		Store:       store,
		Evaluator:   evaluator,
		Provisioner: provisioner,
		Blobs:       blobs,
		Logger:      logger,
		Metrics:     recorder,
	}

	authMiddleware, err := newAuthMiddleware(cfg.Auth)
	if err != nil {
		a.Close()
		return nil, err
	}
	mw := httpiface.Middleware{
		Auth:           authMiddleware,
		Logger:         logger,
		Metrics:        httpMetrics,
		MetricsHandler: metricsHandler,
		XRaySegment:    segmentName,
	}

	a.Echo = httpiface.NewMainRouter(httpiface.Handlers{
		Users:         httpiface.NewUsersHandler(application.NewUserService(deps)),
		Groups:        httpiface.NewGroupsHandler(application.NewMembershipService(deps, groups)),
		Companies:     httpiface.NewCompaniesHandler(application.NewCompanyService(deps)),
		Sales:         httpiface.NewSalesHandler(application.NewSaleService(deps)),
		Purchases:     httpiface.NewPurchasesHandler(application.NewPurchaseService(deps)),
		Bookings:      httpiface.NewBookingsHandler(application.NewBookingService(deps)),
		BookingTypes:  httpiface.NewBookingTypesHandler(application.NewBookingTypeService(deps)),
		Media:         httpiface.NewMediaHandler(application.NewMediaService(deps)),
		Reports:       httpiface.NewReportsHandler(application.NewReportService(store, evaluator)),
		Authorization: httpiface.NewAuthorizationHandler(evaluator),
	}, mw)

	logger.Info(ctx, "application assembled",
		"store", cfg.Store.Backend,
		"auth_mode", cfg.Auth.Mode,
		"media", mediaBackend(cfg.Media),
		"metrics", cfg.Metrics.Enabled,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (ports.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.Store.Region, cfg.Store.TableName)
		if err != nil {
			return nil, fmt.Errorf("init dynamodb client: %w", err)
		}
		return dynamodb.NewStore(client), nil
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		return postgres.NewStore(pool), nil
	case config.BackendMemory:
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
}

func openBlobs(ctx context.Context, cfg config.MediaConfig) (ports.BlobStore, error) {
	if cfg.Endpoint == "" {
		return memory.NewBlobStore(), nil
	}
	return blob.NewMinioStore(ctx, blob.Options{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}

func mediaBackend(cfg config.MediaConfig) string {
	if cfg.Endpoint == "" {
		return "memory"
	}
	return "minio"
}

func newAuthMiddleware(cfg config.AuthConfig) (echo.MiddlewareFunc, error) {
	mode, err := adaptermiddleware.ParseAuthMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	opts := adaptermiddleware.AuthOptions{Mode: mode, APIKey: cfg.APIKey}
	if mode == adaptermiddleware.ModeCognito {
		cognito, err := auth.NewCognitoMiddleware(auth.CognitoOptions{
			UserPoolID: cfg.CognitoUserPoolID,
			Region:     cfg.Region,
			ClientID:   cfg.CognitoClientID,
		})
		if err != nil {
			return nil, err
		}
		opts.Cognito = cognito.Handler
	}
	return adaptermiddleware.AuthMiddleware(opts)
}
