package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
)

// Pinger reports whether a dependency answers.
type Pinger func(ctx context.Context) error

// Health handles GET /health. It fails with 503 when the store does not
// answer within two seconds.
func Health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if store != nil {
			if err := store(ctx); err != nil {
				handler.ErrorResponse(w, r, domain.Unavailable(err, "health", "Store is not reachable"))
				return
			}
		}
		handler.OK(w, handler.Envelope{"status": "ok"})
	}
}
