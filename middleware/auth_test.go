package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoIdentity(t *testing.T) (http.Handler, *Identity, *bool) {
	var seen Identity
	var found bool
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := IdentityFromContext(r.Context())
		found = err == nil
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}), &seen, &found
}

func TestAuthenticate(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.Sign(7, "Ana", time.Hour)
	require.NoError(t, err)
	expired, err := auth.Sign(7, "Ana", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewJWTAuth("other").Sign(7, "Ana", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "bearer header", header: "Bearer " + token, status: http.StatusNoContent},
		{name: "query token", query: token, status: http.StatusNoContent},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + foreign, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, seen, _ := echoIdentity(t)
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.Authenticate(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, Identity{UserID: 7, DisplayName: "Ana"}, *seen)
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	auth := NewJWTAuth("secret")

	next, _, found := echoIdentity(t)
	rec := httptest.NewRecorder()
	auth.OptionalAuthenticate(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, *found)

	token, err := auth.Sign(3, "Bo", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	auth.OptionalAuthenticate(next).ServeHTTP(rec, req)
	assert.True(t, *found)
}

func TestIdentityFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    int64
		wantErr bool
	}{
		{name: "number", claims: jwt.MapClaims{"user_id": float64(12)}, want: 12},
		{name: "string", claims: jwt.MapClaims{"user_id": "12"}, want: 12},
		{name: "fraction", claims: jwt.MapClaims{"user_id": 1.5}, wantErr: true},
		{name: "zero", claims: jwt.MapClaims{"user_id": float64(0)}, wantErr: true},
		{name: "missing", claims: jwt.MapClaims{}, wantErr: true},
		{name: "bool", claims: jwt.MapClaims{"user_id": true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := identityFromClaims(tt.claims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.UserID)
		})
	}
}
