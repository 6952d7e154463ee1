// Package httpserver exposes the services over HTTP/JSON with chi. Every
// handler returns an error; a single boundary in errors.go turns it into the
// response envelope.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server/ratelimit"
	"github.com/dmitrijs2005/saraha/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address   string
	logger    logging.Logger
	auth      *services.AuthService
	users     *services.UserService
	messages  *services.MessageService
	limiter   ratelimit.Limiter
	uploadDir string
	validate  *validator.Validate
}

type Option func(*HTTPServer)

// WithRateLimiter throttles the /auth routes per client IP.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(s *HTTPServer) { s.limiter = l }
}

// WithUploads serves files of the local store under /uploads.
func WithUploads(dir string) Option {
	return func(s *HTTPServer) { s.uploadDir = dir }
}

func NewHTTPServer(addr string, l logging.Logger, as *services.AuthService, us *services.UserService, ms *services.MessageService, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		address:  addr,
		logger:   l.With("module", "http_server"),
		auth:     as,
		users:    us,
		messages: ms,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "refresh-token", "refreshtoken"},
		MaxAge:         300,
	}))

	r.NotFound(s.handle(func(http.ResponseWriter, *http.Request) error {
		return errRouteNotFound
	}))

	r.Get("/health", s.handle(s.health))

	r.Route("/auth", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/register", s.handle(s.register))
		r.Post("/login", s.handle(s.login))
		r.Post("/verify-otp", s.handle(s.verifyOTP))
		r.Post("/resend-otp", s.handle(s.resendOTP))
		r.Post("/google-login", s.handle(s.googleLogin))
		r.Post("/request-password-reset", s.handle(s.requestPasswordReset))
		r.Post("/reset-password", s.handle(s.resetPassword))
		r.Post("/refresh", s.handle(s.refresh))
		r.With(s.authenticate).Post("/logout", s.handle(s.logout))
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/request-password-reset", s.handle(s.requestPasswordReset))
		r.Post("/reset-password", s.handle(s.resetPassword))

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/profile", s.handle(s.profile))
			r.Post("/upload-profile-picture", s.handle(s.uploadProfilePicture))
			r.Delete("/delete-user", s.handle(s.deleteUser))
		})
	})

	r.Route("/message", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/{receiver}", s.handle(s.sendMessage))
		r.Get("/{peer}", s.handle(s.listMessages))
	})

	if s.uploadDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir)))
		r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				s.handleError(w, r, errRouteNotFound)
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) health(w http.ResponseWriter, _ *http.Request) error {
	writeSuccess(w, http.StatusOK, "ok", nil)
	return nil
}
