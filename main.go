package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"p9e.in/genfuel/config"
	"p9e.in/genfuel/handlers"
	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/pkg/archive"
	"p9e.in/genfuel/pkg/ledger"
	"p9e.in/genfuel/pkg/notify"
	"p9e.in/genfuel/pkg/ratelimit"
	"p9e.in/genfuel/pkg/report"
	"p9e.in/genfuel/pkg/store"
	"p9e.in/genfuel/routes"
	"p9e.in/genfuel/utils"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	memoryFlag := flag.Bool("memory", false, "Use the in-memory store instead of PostgreSQL")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(!*memoryFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.InitLogger(cfg.LogLevel)

	if err := run(cfg, *memoryFlag); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, memory bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, memory)
	if err != nil {
		return err
	}
	if err := config.SeedAdmin(ctx, st, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	dispatcher, err := newDispatcher(cfg, st, rdb)
	if err != nil {
		return err
	}
	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- dispatcher.Run(ctx) }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	arc, reportDir, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := arc.(interface{ Close() error }); ok {
		defer c.Close()
	}

	jwt, err := middleware.NewJWT(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	trusted, err := middleware.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	var limiter middleware.Limiter
	if rdb != nil {
		l, err := ratelimit.NewFixedWindowLimiter(rdb, "genfuel:login", cfg.LoginRateLimit, cfg.LoginRateWindow)
		if err != nil {
			return err
		}
		limiter = l
	}

	reports := report.NewBuilder(st, loc)
	if cfg.ReportSchedule != "" {
		format, err := report.ParseFormat(cfg.ReportScheduleFormat)
		if err != nil {
			return err
		}
		sched, err := report.NewScheduler(reports, arc, report.ScheduleConfig{
			Frequency: report.Frequency(cfg.ReportSchedule),
			Time:      cfg.ReportScheduleTime,
			Format:    format,
		})
		if err != nil {
			return err
		}
		go func() { _ = sched.Run(ctx) }()
	}

	h := handlers.New(handlers.Options{
		Store:   st,
		Ledger:  ledger.NewService(st, dispatcher),
		Reports: reports,
		Archive: arc,
		JWT:     jwt,
		DevMode: cfg.IsDevelopment(),
	})
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: routes.RegisterRoutes(routes.Deps{
			Handler:        h,
			JWT:            jwt,
			LoginLimiter:   limiter,
			TrustedProxies: trusted,
			CORSOrigin:     cfg.CORSOrigin,
			ReportDir:      reportDir,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "version", Version, "memory_store", memory || cfg.DSN == "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	stop()
	return <-dispatchDone
}

func openStore(cfg *config.Config, memory bool) (store.Store, error) {
	if memory || cfg.DSN == "" {
		slog.Warn("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}
	db, err := config.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}

func newDispatcher(cfg *config.Config, st store.Store, rdb *redis.Client) (*notify.Dispatcher, error) {
	var queue notify.Queue = notify.NewChanQueue(256)
	if rdb != nil {
		q, err := notify.NewRedisQueue(rdb, "")
		if err != nil {
			return nil, err
		}
		queue = q
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     strconv.Itoa(cfg.SMTP.Port),
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, err
		}
		mailer = m
	} else {
		slog.Warn("SMTP_HOST not set, notifications are logged instead of emailed")
	}

	return notify.NewDispatcher(st, queue, mailer, notify.Options{
		MaxAttempts:   cfg.NotifyMaxAttempts,
		SweepInterval: cfg.NotifySweepInterval,
	}), nil
}

// openArchive picks Cloud Storage when a bucket is configured, else the
// local report directory, which is then also served over HTTP.
func openArchive(ctx context.Context, cfg *config.Config) (archive.Store, string, error) {
	if cfg.ReportBucket != "" {
		gcs, err := archive.NewGCSStore(ctx, cfg.ReportBucket, "reports")
		if err != nil {
			return nil, "", err
		}
		return gcs, "", nil
	}
	local := archive.NewLocalStore(cfg.ReportDir)
	return local, local.Dir, nil
}
