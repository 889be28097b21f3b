package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"posledger/internal/cache"
	"posledger/internal/config"
	"posledger/internal/filestore"
	"posledger/internal/httpapi"
	"posledger/internal/ledger"
	"posledger/internal/lock"
	"posledger/internal/logging"
	"posledger/internal/media"
	"posledger/internal/service"
	"posledger/internal/store"
	"posledger/internal/store/memory"
	pgstore "posledger/internal/store/postgres"
	sqlitestore "posledger/internal/store/sqlite"
)

type closer func() error

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.WithError(envErr).Warn("could not read .env file")
	}

	if err := validateSecurityConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]closer, 0, 4)

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("repository unavailable")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("lock backend unavailable")
	}
	if closeLocker != nil {
		closers = append(closers, closeLocker)
	}

	reports, closeReports := newReportCache(ctx, cfg, log)
	if closeReports != nil {
		closers = append(closers, closeReports)
	}

	files, closeFiles, err := newFileStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("file storage unavailable")
	}
	if closeFiles != nil {
		closers = append(closers, closeFiles)
	}
	log.WithField("provider", cfg.StorageProvider).Info("file storage ready")

	svc := service.New(repo, locker, service.Options{
		Files:         files,
		Images:        media.NewProcessor(cfg.MaxImageBytes),
		Reports:       reports,
		ReportTTL:     cfg.ReportCacheTTL(),
		WatermarkText: cfg.WatermarkText,
		PhoneRegion:   cfg.PhoneRegion,
		Logger:        log,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), svc)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		MaxImageBytes: cfg.MaxImageBytes,
		UploadDir:     servedUploadDir(cfg),
		Logger:        log,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("POS ledger listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Error("close error")
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// openRepository prefers postgres when DATABASE_URL is set and never falls
// back silently once it is.
func openRepository(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (store.Repository, closer, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		log.Info("repository: postgres")
		return pg, pg.Close, nil
	case cfg.Store == "memory":
		log.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	default:
		db, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.WithField("path", cfg.SQLitePath).Info("repository: sqlite")
		return db, db.Close, nil
	}
}

func newLocker(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (ledger.Locker, closer, error) {
	if cfg.LockBackend != "redis" {
		log.Info("locks: in-process")
		return lock.NewKeyedMutex(), nil, nil
	}
	if cfg.RedisAddr == "" {
		return nil, nil, fmt.Errorf("LOCK_BACKEND=redis requires REDIS_ADDR")
	}
	locker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL(), log)
	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()
		return nil, nil, fmt.Errorf("redis locks: %w", err)
	}
	log.Info("locks: redis")
	return locker, locker.Close, nil
}

// newReportCache degrades to a noop cache when redis cannot be reached;
// reports are always recomputable from the ledger.
func newReportCache(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (cache.ReportCache, closer) {
	if cfg.RedisAddr == "" {
		log.Info("report cache: noop")
		return cache.NoopReportCache{}, nil
	}
	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		_ = redisCache.Close()
		log.WithError(err).Warn("redis unavailable, using noop report cache")
		return cache.NoopReportCache{}, nil
	}
	log.Info("report cache: redis")
	return redisCache, redisCache.Close
}

func usesLocalStorage(cfg config.Config) bool {
	return cfg.StorageProvider == "" || cfg.StorageProvider == "local"
}

// servedUploadDir is the directory the API serves uploads from, empty when
// uploads live in a remote bucket.
func servedUploadDir(cfg config.Config) string {
	if !usesLocalStorage(cfg) {
		return ""
	}
	return cfg.UploadDir
}

func newFileStore(ctx context.Context, cfg config.Config) (filestore.Store, closer, error) {
	if usesLocalStorage(cfg) {
		local, err := filestore.NewLocal(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return local, nil, nil
	}
	switch cfg.StorageProvider {
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, nil, fmt.Errorf("STORAGE_PROVIDER=gcs requires GCS_BUCKET")
		}
		gcs, err := filestore.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return gcs, gcs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_PROVIDER %q", cfg.StorageProvider)
	}
}
