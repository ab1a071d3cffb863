package middleware

import (
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

const (
	actorHeader  = "X-Actor"
	defaultActor = "api"
	maxActorLen  = 128
)

// Actor records the operator named in X-Actor for audit trails. Requests are
// not authenticated; the header is attribution only.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := validators.SanitizeString(r.Header.Get(actorHeader), maxActorLen)
			if actor == "" {
				actor = defaultActor
			}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
