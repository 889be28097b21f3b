package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"
	"golang.org/x/crypto/bcrypt"

	"posledger/internal/cache"
	"posledger/internal/domain"
	"posledger/internal/filestore"
	"posledger/internal/ledger"
	"posledger/internal/media"
	"posledger/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Files         filestore.Store
	Images        *media.Processor
	Reports       cache.ReportCache
	ReportTTL     time.Duration
	WatermarkText string
	PhoneRegion   string
	Logger        logrus.FieldLogger
	LedgerOptions []ledger.Option
}

type Service struct {
	repo        store.Repository
	ledger      *ledger.Ledger
	files       filestore.Store
	images      *media.Processor
	reports     cache.ReportCache
	reportTTL   time.Duration
	reportGen   atomic.Uint64
	watermark   string
	phoneRegion string
	log         logrus.FieldLogger
}

// New wires the invoice ledger over repo and registers report cache
// invalidation as its commit hook.
func New(repo store.Repository, locker ledger.Locker, opts Options) *Service {
	if opts.Images == nil {
		opts.Images = media.NewProcessor(0)
	}
	if opts.Reports == nil {
		opts.Reports = cache.NoopReportCache{}
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = time.Minute
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "US"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &Service{
		repo:        repo,
		files:       opts.Files,
		images:      opts.Images,
		reports:     opts.Reports,
		reportTTL:   opts.ReportTTL,
		watermark:   opts.WatermarkText,
		phoneRegion: strings.ToUpper(opts.PhoneRegion),
		log:         opts.Logger,
	}
	ledgerOpts := append([]ledger.Option{ledger.WithCommitHook(s.invalidateReports)}, opts.LedgerOptions...)
	s.ledger = ledger.New(repo, locker, ledgerOpts...)
	return s
}

// Authenticate checks a user name and password against the stored bcrypt
// hash.
func (s *Service) Authenticate(ctx context.Context, userName string, password string) (domain.Actor, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return domain.Actor{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByName(ctx, userName)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Actor{}, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return domain.Actor{}, ErrInvalidCredentials
	}
	return domain.Actor{UserID: user.ID, UserName: user.UserName}, nil
}

func VerifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// normalizePhone returns the number in E.164, reading local numbers in the
// configured region.
func (s *Service) normalizePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	num, err := libphonenumber.Parse(trimmed, s.phoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return nil, store.Invalidf("invalid phone number %q", trimmed)
	}
	formatted := libphonenumber.Format(num, libphonenumber.E164)
	return &formatted, nil
}

// saveImage validates upload and writes it under dir.
func (s *Service) saveImage(ctx context.Context, dir string, upload *domain.Upload, watermark bool) (*string, error) {
	if upload == nil {
		return nil, nil
	}
	if s.files == nil {
		return nil, store.Invalidf("image uploads are not configured")
	}
	img, err := s.images.Process(*upload, watermark, s.watermark)
	if err != nil {
		return nil, err
	}

	ref, err := s.files.Save(ctx, dir, filestore.NewName(img.Ext), img.Data, img.ContentType)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// discardImage removes a stored image. Failures are logged and ignored.
func (s *Service) discardImage(ctx context.Context, ref *string) {
	if ref == nil || *ref == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, *ref); err != nil {
		s.log.WithError(err).WithField("file", *ref).Warn("failed to remove stored image")
	}
}

func trimmed(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return strings.TrimSpace(*v), true
}
