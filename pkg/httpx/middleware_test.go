package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mark("first"), mark("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second"}, order)
}

func TestAuthnAndRole(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("k1", pemKey)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA("k1", signer.PublicKey(), "hostdesk")

	tokenFor := func(role string) string {
		raw, err := signer.Sign(jwtx.NewSessionClaims("u1", "u@example.com", "U", role, nil, time.Hour, "hostdesk", time.Now()))
		require.NoError(t, err)
		return raw
	}

	var seenUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := httpx.Chain(inner, httpx.AuthnMiddleware(verifier), httpx.RequireRole("admin", "superadmin"))

	serve := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, serve("").Code)
	require.Equal(t, http.StatusUnauthorized, serve("Bearer nope").Code)
	require.Equal(t, http.StatusForbidden, serve("Bearer "+tokenFor("user")).Code)

	rec := serve("Bearer " + tokenFor("admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", seenUser)
}
