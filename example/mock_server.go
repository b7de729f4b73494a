package main

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/jpalmerr/rankboard"
)

// walk moves every series of every record one random step: the oldest
// point is dropped and a new point within ±4% of the last is appended.
func walk(records []rankboard.Record) {
	for _, rec := range records {
		for key, values := range rec.Series {
			last := values[len(values)-1]
			next := last * (1 + (rand.Float64()-0.5)*0.08)
			rec.Series[key] = append(values[1:], next)
		}
	}
}

// StartMockSnapshotServer serves a wandering snapshot of the default seed
// at /sites, wrapped as {"data": [...]}. Every request advances the walk.
// Call this in a goroutine before creating the rankboard source.
func StartMockSnapshotServer(addr string) {
	var (
		records = rankboard.DefaultSeed()
		mu      sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		walk(records)
		body, err := json.Marshal(map[string]any{"data": records})
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
