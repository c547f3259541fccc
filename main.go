package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"LIBRA-backend/docs"
	"LIBRA-backend/internal/circulation/books"
	"LIBRA-backend/internal/circulation/borrows"
	"LIBRA-backend/internal/circulation/withdrawals"
	"LIBRA-backend/internal/libraries"
	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/config"
	"LIBRA-backend/internal/platform/db"
	"LIBRA-backend/internal/platform/logger"
	"LIBRA-backend/internal/platform/metrics"
	"LIBRA-backend/internal/platform/middleware"
	"LIBRA-backend/internal/platform/web"
	"LIBRA-backend/internal/reminders"
	"LIBRA-backend/internal/students"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR]", err)
		os.Exit(1)
	}
}

func run() error {
	// 設定読み込み
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		return err
	}
	log := logger.SetupDefault(os.Stdout, cfg.Log.Level)
	log.Info("starting", slog.String("mode", cfg.Mode), slog.String("version", cfg.Version))

	if cfg.DB.AutoMigrate {
		if err := db.RunMigrations(cfg.DB); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
		log.Info("migrations applied")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("connected to DB", slog.String("dbname", cfg.DB.DBName))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	retry := db.DefaultRetryPolicy()
	retry.OnRetry = func(attempt int, err error) {
		rec.RecordTxRetry()
		log.Warn("retrying transaction", slog.Int("attempt", attempt), slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher, err := newDispatcher(cfg.Reminder, conn, rec, log)
	if err != nil {
		return err
	}
	if cfg.Reminder.Enabled {
		sched := reminders.NewScheduler(dispatcher, log, cfg.Reminder.Hour, cfg.Reminder.Minute, dispatcher.Location())
		go sched.Start(ctx)
	}

	borrowLimit := middleware.NewPerMinuteLimiter("borrow", cfg.Borrow.RatePerMinute)
	defer borrowLimit.Stop()

	r := newRouter(cfg, log, reg)
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	requireAuth := auth.RequireAuth([]byte(cfg.Auth.JWTSecret))
	auth.RegisterRoutes(api, auth.NewService(auth.NewStore(conn), []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL), requireAuth)

	protected := api.Group("", requireAuth)
	borrows.RegisterRoutes(protected,
		borrows.NewService(borrows.NewStore(conn, retry), cfg.Borrow.LoanDays, rec),
		borrowLimit.Middleware())
	books.RegisterRoutes(protected, books.NewService(conn, retry))
	withdrawals.RegisterRoutes(protected, withdrawals.NewService(conn, retry))
	libraries.RegisterRoutes(protected, libraries.NewService(conn))
	students.RegisterRoutes(protected, students.NewService(conn))
	reminders.RegisterRoutes(protected, dispatcher)

	r.NoRoute(web.SPAFallback(web.Assets(), "/api"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := cfg.Server.CertFile != "" && cfg.Server.KeyFile != ""
		log.Info("listening", slog.String("addr", srv.Addr), slog.Bool("tls", tls))
		var err error
		if tls {
			err = srv.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, log *slog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Location", "Retry-After"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
		docs.SwaggerInfo.BasePath = "/api"
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	return r
}

// API キーが無ければ送信せずログに残すだけ
func newDispatcher(c config.ReminderConfig, conn *sql.DB, rec metrics.Recorder, log *slog.Logger) (*reminders.Dispatcher, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("reminder timezone: %w", err)
	}
	var sender reminders.Sender = reminders.NewLogSender(log)
	if c.APIKey != "" {
		sender = reminders.NewAiSensySender(c.APIURL, c.APIKey, nil)
	}
	return reminders.NewDispatcher(reminders.NewStore(conn), sender, rec, log, reminders.Options{
		FeeDueInDays:    c.FeeDueInDays,
		FeeCampaign:     c.FeeCampaign,
		OverdueCampaign: c.OverdueCampaign,
		Location:        loc,
	}), nil
}
