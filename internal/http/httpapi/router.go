package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bluecut/internal/http/handlers"
	"bluecut/internal/middleware"
	"bluecut/internal/ratelimit"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	JWTSecret  string
	AppURL     string
	Production bool
	Limiter    *ratelimit.Limiter
	Logger     zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs/*", app.OpenAPIDocs())

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.NewMemoryStore(nil))
	}
	sameOrigin := middleware.SameOrigin(opts.AppURL, opts.Production)
	limit := func(scope ratelimit.Scope, id func(*http.Request) string) func(http.Handler) http.Handler {
		return middleware.RateLimit(limiter, scope, id, opts.Logger)
	}

	r.Route("/api/jobs", func(r chi.Router) {
		// Worker endpoints authenticate with the shared secret.
		r.Post("/callback", app.JobsCallback)
		r.Get("/{id}/input", app.JobsInput)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))

			r.Get("/", app.JobsList)
			r.Get("/export", app.JobsExport)
			r.Get("/events", app.JobEvents)
			r.Get("/{id}", app.JobsGet)
			r.Get("/{id}/download", app.JobsDownload)

			r.With(
				sameOrigin,
				limit(ratelimit.JobsCreateIP, middleware.ClientIP),
				limit(ratelimit.JobsCreateUser, middleware.AuthenticatedUser),
			).Post("/", app.JobsCreate)
			r.With(
				sameOrigin,
				limit(ratelimit.JobsRetryUser, middleware.AuthenticatedUser),
			).Post("/{id}", app.JobsRetry)
		})
	})

	return r
}
