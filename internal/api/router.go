package api

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isdelr/readtrack/internal/api/handlers"
	"github.com/isdelr/readtrack/internal/auth"
	"github.com/isdelr/readtrack/internal/services"
)

// Services bundles what the router hands to its handlers.
type Services struct {
	DB       *sql.DB
	Readers  services.ReaderServiceProvider
	Catalog  services.CatalogServiceProvider
	Tracker  services.TrackerServiceProvider
	Search   services.SearchServiceProvider
	Activity services.ActivityServiceProvider
	Sessions *auth.Manager
}

// NewRouter creates and configures a new Chi router.
func NewRouter(svc Services, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	readerHandler := handlers.NewReaderHandler(svc.Readers, svc.Tracker, svc.Activity, svc.Sessions)
	trackerHandler := handlers.NewTrackerHandler(svc.Catalog, svc.Tracker)
	genreHandler := handlers.NewGenreHandler(svc.Search, svc.Catalog)
	activityHandler := handlers.NewActivityHandler(svc.Activity)
	healthHandler := handlers.NewHealthHandler(svc.DB)

	// Public
	r.Get("/healthz", healthHandler.Healthz)
	r.Post("/signup", readerHandler.Signup)
	r.Post("/login", readerHandler.Login)
	r.Get("/logout", readerHandler.Logout)
	r.Get("/genre", genreHandler.Browse)
	r.Get("/genre/{genre}", genreHandler.Search)
	r.Get("/genres", genreHandler.ListStored)

	// Pages: anonymous visitors are redirected to the login page.
	r.Group(func(r chi.Router) {
		r.Use(svc.Sessions.ViewMiddleware(handlers.LoginPath))
		r.Get("/home", readerHandler.Home)
		r.Get("/profile", readerHandler.Profile)
		r.Get("/search", genreHandler.Browse)
		r.Get("/tbr", trackerHandler.ListTBR)
		r.Get("/reading", trackerHandler.ListCurrentlyReading)
		r.Get("/read", trackerHandler.ListRead)
	})

	// API: anonymous callers get 401.
	r.Group(func(r chi.Router) {
		r.Use(svc.Sessions.Middleware())
		r.Post("/tbr/add", trackerHandler.AddToTBR)
		r.Delete("/tbr/{book_id}", trackerHandler.RemoveFromTBR)
		r.Get("/books/{book_id}", trackerHandler.GetBook)
		r.Post("/status/{book_id}/update", trackerHandler.UpdateStatus)
		r.Post("/reading/{book_id}/start", trackerHandler.StartReading)
		r.Post("/reading/{book_id}/finish", trackerHandler.FinishReading)
		r.Get("/activity", activityHandler.GetRecent)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireStaff)
			r.Delete("/readers/{id}", readerHandler.Delete)
		})
	})

	return r
}
