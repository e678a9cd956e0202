package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whispurrnet/overlay/internal/logger"
)

// Handler returns the HTTP handler serving Registry in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartServer runs a standalone metrics HTTP server bound to addr, serving
// Handler() at path. It returns immediately; the listener runs in its own
// goroutine and logs (rather than panics) on failure to bind.
func StartServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics: server stopped", logger.Error(err))
		}
	}()
	return srv
}
