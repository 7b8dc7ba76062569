// Package ops exposes a small gorilla/mux HTTP surface for health checks
// and sync-progress visibility, grounded on the teacher's
// apiserver/server route-handler shape (sans its gorm-backed controller
// layer, which this read-mostly ops surface has no use for).
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fluxnode-io/flux-indexer/logger"
	"github.com/fluxnode-io/flux-indexer/syncstate"
)

var log, _ = logger.Get(logger.SubsystemTags.OPSS)

func makeHandler(handler func() (interface{}, int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, status := handler()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Warnf("failed writing ops response: %v", err)
		}
	}
}

func addRoutes(router *mux.Router, tracker *syncstate.Tracker) {
	router.HandleFunc("/", makeHandler(func() (interface{}, int) {
		return map[string]string{"status": "fluxindexerd is running"}, http.StatusOK
	})).Methods("GET")

	router.HandleFunc("/healthz", makeHandler(func() (interface{}, int) {
		return map[string]string{"status": "ok"}, http.StatusOK
	})).Methods("GET")

	router.HandleFunc("/syncstate", makeHandler(func() (interface{}, int) {
		return tracker.Current(), http.StatusOK
	})).Methods("GET")
}

// Start launches the ops HTTP surface on listen and returns a function
// that gracefully shuts it down, matching the teacher's
// `shutdownServer := server.Start(...); defer shutdownServer()` shape.
func Start(listen string, tracker *syncstate.Tracker) func() {
	router := mux.NewRouter()
	addRoutes(router, tracker)

	httpServer := &http.Server{
		Addr:    listen,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("ops server error: %v", err)
		}
	}()
	log.Infof("ops surface listening on %s", listen)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warnf("ops server shutdown error: %v", err)
		}
	}
}
