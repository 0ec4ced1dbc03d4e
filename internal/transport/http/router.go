package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/healthvault-api/internal/application/attempt"
	"github.com/healthvault-api/internal/application/auth"
	"github.com/healthvault-api/internal/application/registration"
	"github.com/healthvault-api/internal/application/verification"
	"github.com/healthvault-api/internal/config"
	"github.com/healthvault-api/internal/pkg/otp"
	"github.com/healthvault-api/internal/pkg/password"
	"github.com/healthvault-api/internal/transport/http/handler"
	appmiddleware "github.com/healthvault-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Router is the application handler plus the resources it owns.
type Router struct {
	http.Handler
	limiter *appmiddleware.RateLimiter
}

// Close stops background work started by NewRouter.
func (r *Router) Close() { r.limiter.Stop() }

// NewRouter builds the services from deps and mounts the API under /v1.
func NewRouter(cfg *config.Config, deps *Deps) *Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Applied to the public endpoints that issue or check codes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	otps := verification.NewService(verification.ServiceDeps{
		Repo:           deps.VerificationRepo,
		Hasher:         otp.Hasher{Cost: cfg.BcryptCost},
		Clock:          deps.Clock,
		CodeLength:     cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		ResendCooldown: cfg.OTPResendCooldown,
	})
	passwords := password.Hasher{Cost: cfg.BcryptCost}
	registrationSvc := registration.NewService(registration.ServiceDeps{
		Users:     deps.UserRepo,
		Attempts:  attempt.NewService(deps.AttemptRepo, deps.Clock),
		Otps:      otps,
		Tokens:    deps.JWTProvider,
		Passwords: passwords,
		Notifier:  deps.Notifier,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	})
	authSvc := auth.NewService(deps.UserRepo, otps, passwords, deps.Notifier, deps.Clock, deps.Logger)

	healthH := handler.NewHealthHandler()
	regH := handler.NewRegistrationHandler(registrationSvc)
	resetH := handler.NewPasswordResetHandler(authSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/registration", func(r chi.Router) {
			r.Get("/password-policy", regH.PasswordPolicy)
			r.With(sensitiveRL.Limit).Post("/submit-contact", regH.SubmitContact)
			r.With(sensitiveRL.Limit).Post("/resend-otp", regH.ResendOtp)
			r.With(sensitiveRL.Limit).Post("/verify-otp", regH.VerifyOtp)
			r.Post("/set-password", regH.SetPassword)
			r.Post("/complete-profile", regH.CompleteProfile)
			r.With(appmiddleware.Auth(deps.JWTProvider)).Get("/status", regH.Status)
		})

		r.Route("/password-reset", func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/request", resetH.Request)
			r.Post("/confirm", resetH.Confirm)
		})
	})

	return &Router{Handler: r, limiter: sensitiveRL}
}
