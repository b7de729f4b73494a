// Standalone mock snapshot server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/rankboard serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"

	"github.com/jpalmerr/rankboard"
)

func main() {
	fmt.Println("Mock snapshot server starting on :9999")
	fmt.Println("GET /sites returns the default sites, one random step per request")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		records = rankboard.DefaultSeed()
		mu      sync.Mutex
	)

	http.HandleFunc("GET /sites", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		for _, rec := range records {
			for key, values := range rec.Series {
				next := values[len(values)-1] * (1 + (rand.Float64()-0.5)*0.08)
				rec.Series[key] = append(values[1:], next)
			}
		}
		body, err := json.Marshal(map[string]any{"data": records})
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
