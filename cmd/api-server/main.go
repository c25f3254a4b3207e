package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/faciam-dev/geosurvey/internal/api/handler"
	"github.com/faciam-dev/geosurvey/internal/logger"
	"github.com/faciam-dev/geosurvey/internal/server"
	"github.com/faciam-dev/geosurvey/pkg/ddl"
	"github.com/faciam-dev/geosurvey/pkg/form"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	origins := flag.String("allowed-origins", os.Getenv("ALLOWED_ORIGINS"), "comma separated CORS origins")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	flag.Parse()

	logger.Set(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	api := server.New(server.Config{
		AllowedOrigins: *origins,
		Designer:       &handler.DesignerHandler{Assembler: form.Assembler{DDL: ddl.GenerateSpatial}},
	})

	if *openapi != "" {
		data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
		if err != nil {
			logger.L.Error("marshal openapi", "err", err)
			os.Exit(1)
		}
		p := filepath.Clean(*openapi)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			logger.L.Error("write openapi", "err", err)
			os.Exit(1)
		}
		return
	}

	logger.L.Info("listening", "addr", *addr)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.Adapter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
}
