package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusDisabled = "disabled"
)

// HealthChecks are the optional dependencies reported by the health endpoint.
// A nil Pinger is reported as disabled.
type HealthChecks struct {
	DB    Pinger
	Redis Pinger
	MQTT  Pinger
}

// HealthHandlerFunc returns an http.HandlerFunc that pings each configured dependency.
// It responds 503 when any configured dependency fails.
func HealthHandlerFunc(checks HealthChecks, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		code := http.StatusOK
		check := func(name string, p Pinger) string {
			if p == nil {
				return statusDisabled
			}
			if err := p.Ping(ctx); err != nil {
				log.Error("health check failed", "dependency", name, "err", err)
				code = http.StatusServiceUnavailable
				return statusError
			}
			return statusOK
		}

		body := map[string]string{
			"db":    check("db", checks.DB),
			"redis": check("redis", checks.Redis),
			"mqtt":  check("mqtt", checks.MQTT),
		}
		body["status"] = statusOK
		if code != http.StatusOK {
			body["status"] = "degraded"
		}

		writeJSON(w, code, body)
	}
}
