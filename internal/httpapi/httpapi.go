package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/netip"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"posledger/internal/domain"
	"posledger/internal/lock"
	"posledger/internal/service"
	"posledger/internal/store"
)

const jsonBodyLimit = 1 << 20

type Options struct {
	AllowedOrigin string
	// MaxImageBytes bounds a single uploaded image; multipart bodies get an
	// extra megabyte for the other form fields.
	MaxImageBytes int64
	// UploadDir is served read-only under its own path when relative, so
	// stored local references resolve as URLs.
	UploadDir string
	Logger    logrus.FieldLogger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	uploadLimit   int64
	uploadDir     string
	loginLimiter  *attemptLimiter
	validate      *validator.Validate
	log           logrus.FieldLogger
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 2 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		uploadLimit:   opts.MaxImageBytes + jsonBodyLimit,
		uploadDir:     opts.UploadDir,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		validate:      newValidator(),
		log:           opts.Logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(a.limitBody)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)
	r.Post("/auth/login", a.handleLogin)

	r.Route("/invoice", func(r chi.Router) {
		r.Get("/list", a.handleListInvoices)
		r.Post("/create", a.handleCreateInvoice)
		r.Get("/{id}", a.handleGetInvoice)
		r.Delete("/{id}", a.handleDeleteInvoice)
		r.Post("/{id}/update", a.handleUpdateInvoice)
		r.Post("/{id}/reconcile", a.handleReconcileInvoice)
		r.Post("/{id}/items/add", a.handleAddInvoiceItem)
		r.Put("/{id}/items/{item_id}", a.handleUpdateInvoiceItem)
		r.Delete("/{id}/items/{item_id}", a.handleDeleteInvoiceItem)
	})

	r.Route("/user", func(r chi.Router) {
		r.Get("/list", a.handleListUsers)
		r.Get("/list-by-id/{id}", a.handleGetUser)
		r.Post("/create", a.handleCreateUser)
		r.With(a.requireAuth).Post("/update", a.handleUpdateUser)
		r.With(a.requireAuth).Post("/delete", a.handleDeleteUser)
	})

	r.Route("/product", func(r chi.Router) {
		r.Get("/list", a.handleListProducts)
		r.Get("/list-by-id/{id}", a.handleGetProduct)
		r.Post("/create", a.handleCreateProduct)
		r.Post("/update", a.handleUpdateProduct)
		r.Post("/delete", a.handleDeleteProduct)
	})

	r.Route("/category", func(r chi.Router) {
		r.Get("/list", a.handleListCategories)
		r.Get("/{id}", a.handleGetCategory)
		r.Post("/create", a.handleCreateCategory)
		r.Post("/update", a.handleUpdateCategory)
		r.Post("/delete", a.handleDeleteCategory)
	})

	r.Route("/branch", func(r chi.Router) {
		r.Get("/list", a.handleListBranches)
		r.Get("/{id}", a.handleGetBranch)
		r.Post("/create", a.handleCreateBranch)
		r.Post("/update", a.handleUpdateBranch)
		r.Post("/delete", a.handleDeleteBranch)
	})

	r.Route("/customer", func(r chi.Router) {
		r.Get("/list", a.handleListCustomers)
		r.Get("/{id}", a.handleGetCustomer)
		r.Post("/create", a.handleCreateCustomer)
		r.Post("/update", a.handleUpdateCustomer)
		r.Post("/delete", a.handleDeleteCustomer)
	})

	r.Route("/reports/sales", func(r chi.Router) {
		r.Get("/by", a.handleSalesBy)
		r.Get("/{period}", a.handleSalesSummary)
	})

	if a.uploadDir != "" && !filepath.IsAbs(a.uploadDir) {
		prefix := "/" + strings.Trim(filepath.ToSlash(filepath.Clean(a.uploadDir)), "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(a.uploadDir))))
	}

	return r
}

// requireAuth accepts HTTP Basic credentials or a bearer token issued by
// /auth/login.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			actor domain.Actor
			err   error
		)
		if userName, password, ok := r.BasicAuth(); ok {
			actor, err = a.auth.Basic(r.Context(), userName, password)
			if err != nil && !errors.Is(err, service.ErrInvalidCredentials) {
				a.fail(w, r, err)
				return
			}
		} else {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				err = errAuthRequired
			} else {
				actor, err = a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			}
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="posledger"`)
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func (a *API) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limit := int64(jsonBodyLimit)
			if isMultipart(r) {
				limit = a.uploadLimit
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, io.EOF):
			return store.Invalidf("No input data provided")
		default:
			return store.Invalidf("invalid request body: %v", err)
		}
	}
	return nil
}

// decodeValid decodes a JSON body and runs its validate tags.
func (a *API) decodeValid(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	return a.check(dest)
}

func (a *API) check(v any) error {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email")
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return store.Invalidf("%s", strings.Join(msgs, "; "))
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, store.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, lock.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail maps err to its status and logs anything the client cannot fix.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := a.log.WithError(err).WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"request_id": middleware.GetReqID(r.Context()),
	})
	switch {
	case store.IsClientError(err):
		entry.Debug("request rejected")
	case status >= 500 && status != http.StatusServiceUnavailable:
		entry.Error("request failed")
	}
	if status == http.StatusRequestEntityTooLarge {
		err = errors.New("request body too large")
	}
	writeError(w, status, err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; callers log the real error.
	msg := err.Error()
	if status >= 500 && status != http.StatusServiceUnavailable {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
