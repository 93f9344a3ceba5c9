package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/credit"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/distribution"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	"github.com/smallbiznis/floorquote/internal/lead"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	"github.com/smallbiznis/floorquote/internal/observability"
	obsmiddleware "github.com/smallbiznis/floorquote/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	obstracing "github.com/smallbiznis/floorquote/internal/observability/tracing"
	"github.com/smallbiznis/floorquote/internal/payment"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	"github.com/smallbiznis/floorquote/internal/providers/email"
	"github.com/smallbiznis/floorquote/internal/providers/sms"
	"github.com/smallbiznis/floorquote/internal/ratelimit"
	"github.com/smallbiznis/floorquote/internal/retailer"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services wires every domain service without the HTTP listener, for the CLI.
var Services = fx.Options(
	ratelimit.Module,
	email.Module,
	sms.Module,
	payment.Module,
	lead.Module,
	retailer.Module,
	credit.Module,
	distribution.Module,
)

var Module = fx.Module("http.server",
	Services,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(Preflight())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           CORS(cfg.CORS)(r),
		ReadHeaderTimeout: 10 * time.Second,
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	pricing         *config.PricingHolder
	leadSvc         leaddomain.Service
	retailerSvc     retailerdomain.Service
	creditSvc       creditdomain.Service
	distributionSvc distributiondomain.Service
	webhookSvc      paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Pricing         *config.PricingHolder
	LeadSvc         leaddomain.Service
	RetailerSvc     retailerdomain.Service
	CreditSvc       creditdomain.Service
	DistributionSvc distributiondomain.Service
	WebhookSvc      paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		pricing:         p.Pricing,
		leadSvc:         p.LeadSvc,
		retailerSvc:     p.RetailerSvc,
		creditSvc:       p.CreditSvc,
		distributionSvc: p.DistributionSvc,
		webhookSvc:      p.WebhookSvc,
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	leads := api.Group("/leads")
	leads.POST("", s.CreateLead)
	leads.GET("/:id", s.GetLead)
	leads.POST("/:id/verification", s.SendVerificationCode)
	leads.POST("/:id/verify", s.VerifyLead)
	leads.POST("/:id/cancel", s.CancelLead)
	leads.POST("/:id/distribute", s.DistributeLead)
	leads.GET("/:id/distributions", s.ListLeadDistributions)

	retailers := api.Group("/retailers")
	retailers.POST("", s.CreateRetailer)
	retailers.GET("/:id", s.GetRetailer)
	retailers.PATCH("/:id", s.UpdateRetailer)
	retailers.POST("/:id/subscriptions", s.AddSubscription)
	retailers.GET("/:id/subscriptions", s.ListSubscriptions)
	retailers.DELETE("/:id/subscriptions/:subID", s.DeactivateSubscription)
	retailers.GET("/:id/credits", s.GetCreditBalance)
	retailers.GET("/:id/credits/transactions", s.ListCreditTransactions)
	retailers.POST("/:id/credits/checkout", s.CreateCreditCheckout)
	retailers.GET("/:id/distributions", s.ListRetailerDistributions)

	api.GET("/pricing/quote", s.QuoteLeadPrice)
	api.GET("/pricing/packs", s.ListCreditPacks)

	s.engine.POST("/webhooks/stripe", s.HandleStripeWebhook)
}
