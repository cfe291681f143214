package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/directory"
	"github.com/thinlam/otp-server/internal/otp"
	"github.com/thinlam/otp-server/internal/transport/http/handler"
	appmiddleware "github.com/thinlam/otp-server/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router exposes.
type Deps struct {
	OTPService   otp.Service
	ResetService directory.ResetService
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10. All three endpoints send mail or
	// touch the identity provider, so every one of them is sensitive.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTPService)
	resetH := handler.NewResetHandler(deps.ResetService)

	r.Get("/", healthH.Ping)
	r.With(sensitiveRL.Limit).Post("/send-otp", otpH.Send)
	r.With(sensitiveRL.Limit).Post("/verify-otp", otpH.Verify)
	r.With(sensitiveRL.Limit).Post("/reset-password", resetH.Reset)

	return r
}
