package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/shardline/internal/connection"
	"github.com/rickgao/shardline/internal/writer"
)

// newHealthHandler serves /health and the cache lookup under /debug/guilds.
// pool and archive are nil when the database is disabled.
func newHealthHandler(manager *connection.Manager, pool *pgxpool.Pool, archive *writer.EventWriter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		stats := manager.Stats()
		health.Components["shards"] = stats
		health.Components["dispatcher"] = manager.Dispatcher().Stats()
		if stats.ConnectedCount < stats.ShardCount {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}
		if archive != nil {
			health.Components["archive"] = archive.Stats()
		}

		if err := manager.Err(); err != nil {
			health.Status = "unhealthy"
			health.Components["error"] = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/guilds", func(w http.ResponseWriter, r *http.Request) {
		id, err := snowflake.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "id must be a guild snowflake", http.StatusBadRequest)
			return
		}
		if manager.ShardCount() == 0 {
			http.Error(w, "shards not started", http.StatusServiceUnavailable)
			return
		}

		guild, ok := manager.GetCachedGuild(id)
		if !ok {
			http.Error(w, "guild "+id.String()+" not cached", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(guild)
	})

	return mux
}
