package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulsemetrics/engage-engine/internal/handler"
	"go.uber.org/zap"
)

// NewChiRouter initializes a new chi router with the API routes and middlewares
func NewChiRouter(enableCORS bool) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zapLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if enableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(rg chi.Router) {
		rg.Get("/isalive", handler.IsAlive)

		rg.Post("/dispatch", handler.PostDispatch)

		rg.Get("/rules", handler.GetRules)
		rg.Post("/rules", handler.PostRule)
		rg.Get("/rules/status", handler.GetRulesStatus)
		rg.Get("/rules/{id}", handler.GetRule)
		rg.Put("/rules/{id}", handler.PutRule)
		rg.Delete("/rules/{id}", handler.DeleteRule)

		rg.Get("/interactions", handler.GetInteractions)
		rg.Post("/interactions", handler.PostInteraction)
		rg.Get("/interactions/{id}", handler.GetInteraction)
		rg.Post("/interactions/{id}/retry", handler.PostInteractionRetry)
	})

	return r
}

// zapLogger logs every request through the global zap logger
func zapLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		zap.L().Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())),
		)
	})
}
