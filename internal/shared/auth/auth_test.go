package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/gridbet-engine/internal/shared/auth"
)

func TestParse(t *testing.T) {
	v := auth.NewVerifier("secret")

	tok, err := v.Issue("wallet-1", auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	id, err := v.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", id.WalletAddress)
	assert.True(t, id.IsAdmin())

	// segredo diferente
	_, err = auth.NewVerifier("other").Parse(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := v.Issue("wallet-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Parse(expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noSub, err := v.Issue("", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Parse(noSub)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	v := auth.NewVerifier("secret")
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "wallet-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Parse(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	v := auth.NewVerifier("secret")
	var seen auth.Identity
	h := v.Middleware(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		name   string
		role   string
		header bool
		want   int
	}{
		{"sem header", "", false, http.StatusUnauthorized},
		{"usuario comum", "", true, http.StatusForbidden},
		{"admin", auth.RoleAdmin, true, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tc.header {
				tok, err := v.Issue("ops", tc.role, time.Minute)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, "ops", seen.WalletAddress)
}
