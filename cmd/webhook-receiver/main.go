package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/util"
)

func main() {
	log := util.NewZapLogger()

	addr := os.Getenv("WEBHOOK_RECEIVER_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is accepted", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var event models.SessionEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, "Error parsing JSON", http.StatusBadRequest)
			return
		}

		log.Infow("Received session event",
			"event", event.Event,
			"user_id", event.UserID,
			"ip", event.IPAddress,
			"user_agent", event.UserAgent,
			"occurred_at", event.OccurredAt,
		)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook received!"))
	})

	log.Infof("Webhook receiver listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
