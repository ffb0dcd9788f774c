package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/http/auth"
)

var secret = []byte("test-secret")

func sign(t *testing.T, key []byte, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestMiddleware(t *testing.T) {
	userID := uuid.New()
	valid := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	type testCase struct {
		name       string
		header     string
		wantStatus int
	}

	tests := []testCase{
		{
			name:       "valid token",
			header:     "Bearer " + sign(t, secret, jwt.SigningMethodHS256, valid),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic " + sign(t, secret, jwt.SigningMethodHS256, valid),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + sign(t, []byte("other"), jwt.SigningMethodHS256, valid),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Subject:   userID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject is not a uuid",
			header:     "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen uuid.UUID

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.UserID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			auth.Middleware(secret)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, userID, seen)
			}
		})
	}
}
