package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"posledger/internal/config"
	"posledger/internal/filestore"
	"posledger/internal/lock"
	"posledger/internal/store/memory"
	sqlitestore "posledger/internal/store/sqlite"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsLongSecret(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{Store: "memory"}, quietLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("memory repository needs no closer")
	}
	if _, ok := repo.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", repo)
	}
}

func TestOpenRepositoryDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, closeFn, err := openRepository(context.Background(), config.Config{SQLitePath: path}, quietLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if _, ok := repo.(*sqlitestore.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", repo)
	}
}

func TestNewLockerDefaultsToInProcess(t *testing.T) {
	locker, closeFn, err := newLocker(context.Background(), config.Config{LockBackend: "local"}, quietLogger())
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("in-process locks need no closer")
	}
	if _, ok := locker.(*lock.KeyedMutex); !ok {
		t.Fatalf("expected keyed mutex, got %T", locker)
	}
}

func TestNewLockerRedisRequiresAddress(t *testing.T) {
	_, _, err := newLocker(context.Background(), config.Config{LockBackend: "redis"}, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Fatalf("expected REDIS_ADDR error, got %v", err)
	}
}

func TestNewReportCacheWithoutRedis(t *testing.T) {
	c, closeFn := newReportCache(context.Background(), config.Config{}, quietLogger())
	if closeFn != nil {
		t.Fatalf("noop cache needs no closer")
	}
	if c == nil {
		t.Fatalf("expected a cache")
	}
}

func TestNewFileStore(t *testing.T) {
	files, _, err := newFileStore(context.Background(), config.Config{StorageProvider: "local", UploadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	if _, ok := files.(*filestore.Local); !ok {
		t.Fatalf("expected local store, got %T", files)
	}

	if _, _, err := newFileStore(context.Background(), config.Config{StorageProvider: "gcs"}); err == nil || !strings.Contains(err.Error(), "GCS_BUCKET") {
		t.Fatalf("expected GCS_BUCKET error, got %v", err)
	}
	if _, _, err := newFileStore(context.Background(), config.Config{StorageProvider: "ftp"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestServedUploadDirFollowsFileStore(t *testing.T) {
	dir := t.TempDir()
	for _, provider := range []string{"", "local"} {
		cfg := config.Config{StorageProvider: provider, UploadDir: dir}
		files, _, err := newFileStore(context.Background(), cfg)
		if err != nil {
			t.Fatalf("provider %q: %v", provider, err)
		}
		if _, ok := files.(*filestore.Local); !ok {
			t.Fatalf("provider %q: expected local store, got %T", provider, files)
		}
		if got := servedUploadDir(cfg); got != dir {
			t.Fatalf("provider %q: expected uploads served from %s, got %q", provider, dir, got)
		}
	}
	if got := servedUploadDir(config.Config{StorageProvider: "gcs", UploadDir: dir}); got != "" {
		t.Fatalf("gcs uploads must not be served locally, got %q", got)
	}
}
