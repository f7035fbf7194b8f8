package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	s, err := token.SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestParseUserIDRoundTrip(t *testing.T) {
	want := uuid.New()
	tok := signToken(t, testSecret, want.String(), time.Now().Add(time.Hour))

	got, err := ParseUserID(testSecret, tok)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestParseUserIDRejectsBadSignature(t *testing.T) {
	tok := signToken(t, []byte("other-secret"), uuid.NewString(), time.Now().Add(time.Hour))
	_, err := ParseUserID(testSecret, tok)
	require.Error(t, err)
}

func TestParseUserIDRejectsExpired(t *testing.T) {
	tok := signToken(t, testSecret, uuid.NewString(), time.Now().Add(-time.Hour))
	_, err := ParseUserID(testSecret, tok)
	require.Error(t, err)
}

func TestBearerTokenFallsBackToQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/ai/backlog/x?token=abc", nil)
	require.Equal(t, "abc", BearerToken(r))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	r.Header.Set("Authorization", "Bearer def")
	require.Equal(t, "def", BearerToken(r))
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	tok := signToken(t, testSecret, userID.String(), time.Now().Add(time.Hour))

	var got uuid.UUID
	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, userID, got)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
