package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/washwise/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса WashWise.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Get("/system/config", h.SystemConfig)
		r.Get("/orders/qr/{orderID}", h.GetOrderByQR)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Get("/me", h.Me)
				r.Put("/me/password", h.ChangePassword)
				r.Put("/me/subscribe", h.SelfSubscribe)
				r.Get("/me/qrcodes", h.MyQRCode)
				r.Delete("/{userID}", h.DeleteUser)
				r.Post("/{userID}/subscribe", h.SubscribeUser)
				r.Get("/{userID}/active-orders", h.ActiveOrders)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Get("/", h.ListOrders)
				r.Get("/export", h.ExportOrders)
				r.Put("/{orderID}/pay", h.PayOrder)
				r.Put("/items/{itemID}/status", h.UpdateItemStatus)
			})
		})
	})

	if h.qrDir != "" {
		r.Handle(qrURLPrefix+"*", http.StripPrefix(qrURLPrefix, http.FileServer(http.Dir(h.qrDir))))
	}

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
