package server

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faciam-dev/geosurvey/internal/api/handler"
	"github.com/faciam-dev/geosurvey/internal/server/middleware"
)

// DefaultOrigins is used when Config.AllowedOrigins is empty.
const DefaultOrigins = "http://localhost:5173"

// Config controls the designer API.
type Config struct {
	// AllowedOrigins is a comma separated CORS allow list.
	AllowedOrigins string
	Designer       *handler.DesignerHandler
}

// New builds the designer API on a chi router. /metrics serves the default
// prometheus registry.
func New(cfg Config) huma.API {
	r := chi.NewRouter()

	allowed := cfg.AllowedOrigins
	if allowed == "" {
		allowed = DefaultOrigins
	}
	origins := strings.Split(allowed, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	api := humachi.New(r, huma.DefaultConfig("Survey Designer API", "1.0.0"))
	api.UseMiddleware(middleware.Metrics)

	h := cfg.Designer
	if h == nil {
		h = &handler.DesignerHandler{}
	}
	handler.RegisterDesigner(api, h)
	return api
}
