// Package devserver is a self-contained development backend that serves the
// portfolio admin REST API over a storage.Repository.
package devserver

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"golang.org/x/time/rate"

	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage"
)

// MountPath is the prefix Handler serves the API under.
const MountPath = "/api"

const (
	defaultTokenTTL = 24 * time.Hour
	resetTTL        = 15 * time.Minute
	verificationTTL = 10 * time.Minute
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo        storage.Repository
	logger      *slog.Logger
	audit       *auditLogger
	tokens      *tokenIssuer
	resets      *resetStore
	rateLimiter *loginRateLimiter
	ipLimiter   *ipLimiter
	kdf         util.Argon2idParams
	now         func() time.Time

	jwtSecret     []byte
	tokenTTL      time.Duration
	recoveryRate  rate.Limit
	recoveryBurst int
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. Audit events are written to the
// same handler with component=audit.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithJWTSecret sets the HS256 signing key. Without it a random key is
// generated and tokens do not survive a restart.
func WithJWTSecret(secret []byte) Option {
	return func(a *API) {
		a.jwtSecret = append([]byte(nil), secret...)
	}
}

// WithTokenTTL sets the lifetime of issued bearer tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *API) {
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

// WithKDFParams overrides the Argon2id cost used for new hashes.
func WithKDFParams(p util.Argon2idParams) Option {
	return func(a *API) {
		a.kdf = p
	}
}

// WithRecoveryRateLimit sets the per-IP token bucket guarding the
// forgot-password endpoints.
func WithRecoveryRateLimit(limit rate.Limit, burst int) Option {
	return func(a *API) {
		a.recoveryRate = limit
		a.recoveryBurst = burst
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// New creates a new API instance.
func New(repo storage.Repository, opts ...Option) *API {
	kdf, _ := util.Argon2idProfile(util.KDFProfileInteractive)
	a := &API{
		repo:          repo,
		logger:        slog.Default(),
		kdf:           kdf,
		now:           time.Now,
		tokenTTL:      defaultTokenTTL,
		recoveryRate:  rate.Every(12 * time.Second),
		recoveryBurst: 5,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.audit = newAuditLogger(a.logger)
	a.tokens = newTokenIssuer(a.jwtSecret, a.tokenTTL, a.now)
	util.WipeBytes(a.jwtSecret)
	a.jwtSecret = nil
	a.resets = newResetStore(a.now)
	a.rateLimiter = newLoginRateLimiter(a.now)
	a.ipLimiter = newIPLimiter(a.recoveryRate, a.recoveryBurst, a.now)
	return a
}

// Handler returns the API mounted under MountPath with security headers.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Mount(MountPath, a.Router())
	return r
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: MountPath + "/openapi.yaml",
		Path:    MountPath[1:] + "/docs",
	}, nil))

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", a.Login)
		r.Post("/logout", a.Logout)

		r.Group(func(r chi.Router) {
			r.Use(a.recoveryThrottle)
			r.Post("/forgot-password/initiate", a.InitiatePasswordReset)
			r.Post("/forgot-password/verify", a.VerifySecurityAnswers)
			r.Post("/forgot-password/reset", a.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.AuthMiddleware)
			r.Get("/profile", a.Profile)
			r.Put("/change-password", a.ChangePassword)
			r.Get("/security-questions", a.GetSecurityQuestions)
			r.Put("/security-questions", a.UpdateSecurityQuestions)
		})
	})

	mountCollection(r, a, a.projects())
	mountCollection(r, a, a.categories())
	mountCollection(r, a, a.reviews())

	r.Get("/content", a.GetContent)
	r.Get("/files/{fileID}", a.GetFile)
	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Put("/content", a.PutContent)
		r.Patch("/content/section", a.PatchContentSection)
		r.Post("/content/resume", a.UploadResume)
		r.Post("/content/certificates", a.AddCertificate)
		r.Delete("/content/certificates/{index}", a.DeleteCertificate)
	})

	return r
}
