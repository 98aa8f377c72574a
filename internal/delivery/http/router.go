package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"communityevents/internal/delivery/http/controllers"
	"communityevents/internal/delivery/http/middleware"
	"communityevents/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	verifier domain.TokenVerifier,
	eventController *controllers.EventController,
	authController *controllers.AuthController,
	paymentController *controllers.PaymentController,
	userController *controllers.UserController,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier)

	// Events
	mux.HandleFunc("POST /events", auth(eventController.CreateEvent))
	mux.HandleFunc("GET /events", auth(eventController.ListEvents))
	mux.HandleFunc("GET /events/{eventID}", auth(eventController.GetEvent))
	mux.HandleFunc("PUT /events/{eventID}", auth(eventController.UpdateEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(eventController.DeleteEvent))

	// Registrations
	mux.HandleFunc("POST /events/{eventID}/registrations", auth(eventController.RegisterSelf))
	mux.HandleFunc("DELETE /events/{eventID}/registrations", auth(eventController.CancelRegistration))
	mux.HandleFunc("POST /events/{eventID}/guests", eventController.RegisterGuest)

	// Public
	mux.HandleFunc("GET /public/events", eventController.ListPublicEvents)

	// Auth
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)
	mux.HandleFunc("GET /auth/me", auth(authController.Me))

	// Payments
	mux.HandleFunc("POST /payments", auth(paymentController.RecordPayment))
	mux.HandleFunc("GET /payments/me", auth(paymentController.MyPayments))
	mux.HandleFunc("GET /users/{userID}/payments", auth(paymentController.UserPayments))
	mux.HandleFunc("GET /users/{userID}/payments/summary", auth(paymentController.UserPaymentSummary))

	// Users
	mux.HandleFunc("GET /users/regions-campuses", auth(userController.RegionsCampuses))

	// Health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
