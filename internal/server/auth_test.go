package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticator(t *testing.T) {
	const secret = "test-secret"
	auth := NewAuthenticator(secret)
	valid := jwt.MapClaims{"sub": "coach-7", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name      string
		header    string
		wantActor string
		wantErr   bool
	}{
		{name: "Valid", header: "Bearer " + signToken(t, secret, valid), wantActor: "coach-7"},
		{name: "Missing", header: "", wantErr: true},
		{name: "NotBearer", header: "Basic abc", wantErr: true},
		{name: "WrongSecret", header: "Bearer " + signToken(t, "other", valid), wantErr: true},
		{name: "Expired", header: "Bearer " + signToken(t, secret, jwt.MapClaims{"sub": "coach-7", "exp": time.Now().Add(-time.Hour).Unix()}), wantErr: true},
		{name: "NoExpiry", header: "Bearer " + signToken(t, secret, jwt.MapClaims{"sub": "coach-7"}), wantErr: true},
		{name: "NoSubject", header: "Bearer " + signToken(t, secret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), wantErr: true},
		{name: "AlgNone", header: "Bearer eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJjb2FjaC03In0.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			actor, err := auth.Actor(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantActor, actor)
		})
	}
}

func TestAuthenticatorDisabled(t *testing.T) {
	auth := NewAuthenticator("")
	assert.False(t, auth.Enabled())

	actor, err := auth.Actor(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, AnonymousActor, actor)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	actor, ok := ActorFrom(WithActor(context.Background(), "coach-1"))
	assert.True(t, ok)
	assert.Equal(t, "coach-1", actor)
}

func TestRoutesRequireToken(t *testing.T) {
	const secret = "test-secret"
	env := newTestEnv(t, secret)

	t.Run("Rejected", func(t *testing.T) {
		rec := serve(t, env, newUploadRequest(t, "client-1", upload{name: "a.jpg", contentType: "image/jpeg", body: "a"}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Please login first", decode[any](t, rec).Message)
		assert.Zero(t, env.extractor.calls())
	})

	t.Run("ActorRecorded", func(t *testing.T) {
		req := newUploadRequest(t, "client-1", upload{name: "a.jpg", contentType: "image/jpeg", body: "a"})
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, jwt.MapClaims{
			"sub": "coach-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		}))

		rec := serve(t, env, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "coach-7", decode[PlanResponse](t, rec).Data.CreatedBy)

		plans, err := env.plans.ListByClient(context.Background(), "client-1")
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "coach-7", plans[0].CreatedBy)
	})
}
