package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

// Pinger is implemented by pending-session registries backed by a network
// service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivezHandler godoc
//
//	@Summary		Liveness Check Endpoint
//	@Description	Returns 200 while the process is serving requests. Dependencies are not checked; see /readyz.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get]
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the database, the session signer and the pending-session store
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get]
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	issuer string,
	reg pending.Registry,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:       "ok",
			Signer:         "ok",
			PendingSession: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check database connectivity
		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Round-trip a short-lived token through the signer and verifier
		if err := probeSigner(signer, verifier, issuer); err != nil {
			checks.Signer = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if p, ok := reg.(Pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				checks.PendingSession = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}

func probeSigner(signer jwtx.Signer, verifier jwtx.Verifier, issuer string) error {
	claims := jwtx.NewSessionClaims("readyz", "", "", "", nil, time.Minute, issuer, time.Now())
	token, err := signer.Sign(claims)
	if err != nil {
		return err
	}
	_, err = verifier.Verify(token)
	return err
}
