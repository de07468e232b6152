package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retainly/retainly/internal/analytics"
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/internal/metrics"
	"github.com/retainly/retainly/internal/model/registry"
	"github.com/retainly/retainly/internal/pipeline"
	predictiondomain "github.com/retainly/retainly/internal/prediction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics, reg *registry.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(metrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		churnVersion, clvVersion := reg.ActiveVersions()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"models_loaded": gin.H{
				"churn_model": churnVersion != "",
				"clv_model":   clvVersion != "",
			},
			"churn_model_version": churnVersion,
			"clv_model_version":   clvVersion,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, m *metrics.Metrics, reg *registry.Registry) *gin.Engine {
	return NewEngine(cfg, log, m, reg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	customerSvc   customerdomain.Service
	featureSvc    featuredomain.Service
	featureStore  featuredomain.Store
	predictionSvc predictiondomain.Service
	orchestrator  *pipeline.Orchestrator
	analyticsSvc  *analytics.Service
	registry      *registry.Registry
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	CustomerSvc   customerdomain.Service
	FeatureSvc    featuredomain.Service
	FeatureStore  featuredomain.Store
	PredictionSvc predictiondomain.Service
	Orchestrator  *pipeline.Orchestrator
	AnalyticsSvc  *analytics.Service
	Registry      *registry.Registry
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		customerSvc:   p.CustomerSvc,
		featureSvc:    p.FeatureSvc,
		featureStore:  p.FeatureStore,
		predictionSvc: p.PredictionSvc,
		orchestrator:  p.Orchestrator,
		analyticsSvc:  p.AnalyticsSvc,
		registry:      p.Registry,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.GET("/customers/:id/features", s.GetCustomerFeatures)
	api.GET("/customers/:id/features/history", s.GetCustomerFeatureHistory)

	// -------- Predictions --------
	api.POST("/predict/churn", s.PredictChurn)
	api.POST("/predict/clv", s.PredictCLV)

	// -------- Pipeline --------
	api.POST("/etl/run", s.RunETL)
	api.POST("/train", s.RunTraining)
	api.GET("/models", s.ListModels)

	// -------- Analytics --------
	api.GET("/analytics/dashboard", s.GetDashboard)
}
