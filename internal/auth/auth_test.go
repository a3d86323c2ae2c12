package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "carbon.identity", TokenTTL: time.Hour}

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := Issue("user-1", testConfig)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := Issue("user-1", testConfig)
	require.NoError(t, err)

	_, err = Parse(token, Config{Secret: "other", Issuer: testConfig.Issuer})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := Issue("user-1", Config{Secret: testConfig.Secret, Issuer: "someone-else", TokenTTL: time.Hour})
	require.NoError(t, err)

	_, err = Parse(token, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsEmptyToken(t *testing.T) {
	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddlewareAttachesClaimsWhenTokenValid(t *testing.T) {
	token, err := Issue("user-7", testConfig)
	require.NoError(t, err)

	var got *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	NewMiddleware(testConfig).Wrap(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	require.Equal(t, "user-7", got.UserID)
}

func TestMiddlewarePassesAnonymousThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := FromContext(r.Context())
		require.False(t, ok)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	rr := httptest.NewRecorder()
	NewMiddleware(testConfig).Wrap(next).ServeHTTP(rr, req)

	require.True(t, called)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareTreatsGarbageTokenAsAnonymous(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := FromContext(r.Context())
		require.False(t, ok)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	NewMiddleware(testConfig).Wrap(next).ServeHTTP(httptest.NewRecorder(), req)
}
