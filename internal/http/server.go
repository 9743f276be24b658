package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmehdipour/billing-backend/internal/config"
	"github.com/jmehdipour/billing-backend/internal/db"
	"github.com/jmehdipour/billing-backend/internal/http/middleware"
	"github.com/jmehdipour/billing-backend/internal/identity"
	"github.com/jmehdipour/billing-backend/internal/metrics"
	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmehdipour/billing-backend/internal/service/billing"
	"github.com/jmehdipour/billing-backend/internal/service/tenant"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Resolver is the tenant choke point: every bearer route resolves the
// verified identity to a tenant id before touching tenant data.
type Resolver interface {
	Resolve(ctx context.Context, subject, email string) (int64, error)
}

// BillingService is the surface the handlers consume.
type BillingService interface {
	ListBills(ctx context.Context, tenantID int64) ([]model.Bill, error)
	AddBill(ctx context.Context, tenantID int64, name, contact, email string, amount float64) (int64, error)
	UpdateBill(ctx context.Context, tenantID, billID int64, patch model.BillPatch) error
	DeleteBill(ctx context.Context, tenantID, billID int64) error
	UserStats(ctx context.Context, tenantID int64) (model.Stats, error)
	DeleteAccount(ctx context.Context, tenantID int64, subject string) error
	ViewAllData(ctx context.Context) (model.AdminReport, error)
}

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client, provider identity.Provider) *Server {
	// repos (MySQL)
	tenantsRepo := repository.NewTenantsRepository(mysqlDB)
	provisionRepo := repository.NewProvisionRepository(mysqlDB)
	billsRepo := repository.NewBillsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// services
	cache := tenant.NewCache()
	resolver := tenant.NewService(tenantsRepo, provisionRepo, cache)
	billingSvc := billing.New(
		db.NewGateway(mysqlDB),
		billsRepo,
		tenantsRepo,
		provisionRepo,
		outboxRepo,
		provider,
		cache,
		cfg.Kafka.Topic,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger(), echoMid.CORS())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/db", dbCheckHandler(mysqlDB))

	// middlewares
	authMW := middleware.BearerAuth(provider)
	rlMW := middleware.RateLimit(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:sub:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	g := e.Group("", authMW, rlMW)
	g.GET("/check-auth", checkAuthHandler(resolver))
	g.GET("/get_bills", getBillsHandler(resolver, billingSvc))
	g.POST("/add_bill", addBillHandler(resolver, billingSvc))
	g.PUT("/update_bill/:id", updateBillHandler(resolver, billingSvc))
	g.DELETE("/delete_bill/:id", deleteBillHandler(resolver, billingSvc))
	g.GET("/user-stats", userStatsHandler(resolver, billingSvc))
	g.DELETE("/delete-account", deleteAccountHandler(resolver, billingSvc))
	g.GET("/admin/view-all-data", viewAllDataHandler(billingSvc))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
