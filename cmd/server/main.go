// Package main runs the convention registration HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conreg/backend/config"
	"github.com/conreg/backend/internal/analytics"
	"github.com/conreg/backend/internal/audit"
	"github.com/conreg/backend/internal/auth"
	"github.com/conreg/backend/internal/avatars"
	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/checkin"
	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/emaillogs"
	"github.com/conreg/backend/internal/metrics"
	"github.com/conreg/backend/internal/middleware"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/notify"
	"github.com/conreg/backend/internal/payments"
	"github.com/conreg/backend/internal/realtime"
	"github.com/conreg/backend/internal/registrations"
	"github.com/conreg/backend/pkg/database"
	"github.com/conreg/backend/pkg/queue"
	"github.com/conreg/backend/pkg/redis"
	"github.com/conreg/backend/pkg/response"
	"github.com/conreg/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.PoolOptions(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	var gateway payments.Gateway = payments.Manual{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payments.NewStripe(payments.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			BaseURL:   cfg.Stripe.BaseURL,
			Currency:  cfg.Stripe.Currency,
		}, logger)
	} else {
		logger.Warn("stripe not configured; card payments will be declined")
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Conventions
	conventionRepo := conventions.NewRepository(pool)
	conventionHandler := conventions.NewHandler(conventionRepo, logger)
	currentConvention := conventions.RequireCurrent(conventionRepo, logger)

	// Catalog and coupons
	catalogHandler := catalog.NewHandler(catalog.NewRepository(pool), logger)
	couponHandler := coupons.NewHandler(coupons.NewRepository(pool), logger)

	// Check-in queue
	queueRepo := checkin.NewRepository(pool)
	lineQueue := checkin.NewQueue(queueRepo, hub, m, cfg.CheckIn.VisibilityWindow, logger)

	// Registrations
	notifier := notify.New(jobQueue, notify.Recipients{
		RegistrationGroup: cfg.Email.RegistrationGroup,
		BoardGroup:        cfg.Email.BoardGroup,
		Treasurer:         cfg.Email.Treasurer,
	}, logger)
	registrationSvc := registrations.NewService(
		registrations.NewRepository(pool),
		gateway,
		notifier,
		lineQueue,
		rdb,
		m,
		registrations.Options{
			LineQueue:      cfg.CheckIn.LineQueue,
			SearchLimit:    cfg.CheckIn.SearchLimit,
			LookupFailures: cfg.CheckIn.LookupFailures,
			LookupWindow:   cfg.CheckIn.LookupWindow,
		},
		logger,
	)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Desk
	deskSvc := checkin.NewDesk(lineQueue, registrationSvc, checkin.DeskOptions{
		LineQueue:   cfg.CheckIn.LineQueue,
		BadgeQueue:  cfg.CheckIn.BadgeQueue,
		LineSize:    cfg.CheckIn.LineListSize,
		BadgeSize:   cfg.CheckIn.BadgeListSize,
		AutoRequest: cfg.CheckIn.AutoRequestBadge,
	}, logger)
	checkinHandler := checkin.NewHandler(deskSvc, lineQueue, logger)

	// Email logs, audit trail, stats
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), registrationSvc, logger)
	auditHandler := audit.NewHandler(audit.NewRepository(pool), logger)
	statsHandler := analytics.NewHandler(pool, logger)

	// Avatars (only with S3)
	var avatarHandler *avatars.Handler
	if s3Client != nil {
		avatarSvc := avatars.NewService(avatars.NewRepository(pool), s3Client, cfg.Avatars.TempTTL, logger)
		avatarHandler = avatars.NewHandler(avatarSvc, logger)
	}

	identifyStaff := func(c *gin.Context) (uuid.UUID, string, bool) {
		actor, ok := middleware.ActorFromContext(c)
		return actor.UserID, string(actor.Role), ok
	}
	resolveConvention := func(c *gin.Context) (uuid.UUID, bool) {
		cv, err := conventionRepo.GetCurrent(c.Request.Context())
		if err != nil {
			return uuid.Nil, false
		}
		return cv.ID, true
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Public: registration funnel and confirmation page for the current convention
	public := router.Group("")
	public.Use(currentConvention)
	{
		public.GET("/conventions/current", conventionHandler.Current)
		public.GET("/conventions/current/levels", catalogHandler.AvailableLevels)
		public.GET("/conventions/current/dealer-levels", catalogHandler.DealerLevels)
		public.GET("/payment-methods", catalogHandler.PaymentMethods)

		public.POST("/registrations/quote", registrationHandler.Quote)
		public.POST("/registrations", registrationHandler.Register)
		public.GET("/registrations/confirm/:external_id", registrationHandler.Confirmation)
		public.POST("/registrations/confirm/:external_id/upgrade", registrationHandler.ConfirmationUpgrade)
		public.POST("/registrations/confirm/:external_id/dealer", registrationHandler.ConfirmationDealer)

		if avatarHandler != nil {
			public.POST("/avatars/presign", avatarHandler.Presign)
			public.POST("/avatars", avatarHandler.Upload)
		}
	}

	// Superuser: staff accounts and conventions
	admin := router.Group("")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleSuperuser))
	{
		admin.GET("/users", authHandler.List)
		admin.POST("/users", authHandler.CreateStaff)
		admin.GET("/conventions", conventionHandler.List)
		admin.POST("/conventions", conventionHandler.Create)
		admin.PUT("/conventions/:id/settings", conventionHandler.UpdateSettings)
		admin.POST("/conventions/:id/current", conventionHandler.MakeCurrent)
	}

	// Registration leads: catalog, coupons, holds and reports
	lead := router.Group("")
	lead.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleSuperuser, models.RoleRegLead), currentConvention)
	{
		lead.GET("/catalog/levels", catalogHandler.Levels)
		lead.POST("/catalog/levels", catalogHandler.CreateLevel)
		lead.POST("/catalog/upgrades", catalogHandler.CreateUpgrade)
		lead.POST("/catalog/dealer-levels", catalogHandler.CreateDealerLevel)
		lead.POST("/catalog/payment-methods", catalogHandler.CreatePaymentMethod)

		lead.GET("/coupons", couponHandler.List)
		lead.POST("/coupons", couponHandler.Create)

		lead.GET("/holds", registrationHandler.Holds)
		lead.POST("/holds", registrationHandler.AddHold)

		lead.GET("/admin/emails", emailLogsHandler.ListByConvention)
		lead.GET("/admin/audit", auditHandler.List)
		lead.GET("/admin/stats", statsHandler.Summary(hub))
	}

	// Check-in desk: staff on an authorized terminal
	desk := router.Group("/desk")
	desk.Use(middleware.Desk(middleware.JWT(jwtService), jwtService, cfg.CheckIn.TerminalTTL, logger)...)
	desk.Use(currentConvention)
	{
		desk.GET("/registrations", registrationHandler.Search)
		desk.POST("/registrations", registrationHandler.Register)
		desk.POST("/registrations/swipe", registrationHandler.SwipeSearch)
		desk.GET("/registrations/:id", registrationHandler.Get)
		desk.PATCH("/registrations/:id", registrationHandler.Edit)
		desk.GET("/registrations/:id/history", registrationHandler.History)
		desk.POST("/registrations/:id/payments", registrationHandler.ApplyPayment)
		desk.POST("/registrations/:id/onsite-payment", registrationHandler.OnsitePayment)
		desk.POST("/registrations/:id/refund", registrationHandler.Refund)
		desk.DELETE("/registrations/:id/refund", registrationHandler.UndoRefund)
		desk.POST("/registrations/:id/reject", registrationHandler.Reject)
		desk.POST("/registrations/:id/status", registrationHandler.ChangeStatus)
		desk.POST("/registrations/:id/check-in", registrationHandler.CheckIn)
		desk.DELETE("/registrations/:id/check-in", registrationHandler.UndoCheckIn)
		desk.POST("/registrations/:id/upgrade", registrationHandler.Upgrade)
		desk.POST("/registrations/:id/open", checkinHandler.Open)
		desk.GET("/registrations/:id/emails", emailLogsHandler.ListByRegistration)
		desk.POST("/registrations/:id/emails/resend", emailLogsHandler.Resend)
		desk.POST("/badges/print", registrationHandler.PrintBadges)

		desk.GET("/line", checkinHandler.Line)
		desk.GET("/badge-requests", checkinHandler.BadgeRequests)
		desk.DELETE("/badge-requests/:id", checkinHandler.Acknowledge)
		desk.GET("/queues/:name", checkinHandler.List)
		desk.POST("/queues/:name", checkinHandler.Enqueue)
		desk.DELETE("/queues/:name/:id", checkinHandler.Dequeue)
	}

	// WebSocket: desk staff on an authorized terminal, token in the query
	ws := append(middleware.Desk(middleware.JWTQuery(jwtService), jwtService, cfg.CheckIn.TerminalTTL, logger),
		realtime.ServeWs(hub, logger, identifyStaff, resolveConvention))
	router.GET("/ws", ws...)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
