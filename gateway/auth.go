package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"tranchepool/observability/logging"
)

const adminRole = "admin"

// adminOnly guards administrative routes with an HS256 bearer token carrying
// a role claim. A missing secret disables the routes entirely rather than
// leaving them open.
func adminOnly(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				writeError(w, r, http.StatusForbidden, "administrative routes disabled")
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logger.Warn("admin token rejected",
					"path", r.URL.Path, "error", err, logging.MaskField("token", raw))
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			if role, _ := claims["role"].(string); role != adminRole {
				writeError(w, r, http.StatusForbidden, "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
