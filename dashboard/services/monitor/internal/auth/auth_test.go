package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newOperator(t *testing.T, password string) *Operator {
	t.Helper()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash := ""
	if password != "" {
		var err error
		hash, err = hasher.Hash(password)
		require.NoError(t, err)
	}
	return NewOperator(hasher, hash, NewTokenService("test-secret", time.Hour))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if ok {
			w.Header().Set("X-Role", claims.Role)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "s3cret"))
	assert.Error(t, h.Compare(hash, "wrong"))

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	op := newOperator(t, "s3cret")
	require.True(t, op.Enabled())

	_, _, err := op.Login("nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, expires, err := op.Login("s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := op.tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, RoleOperator, claims.Subject)
}

func TestMiddleware(t *testing.T) {
	op := newOperator(t, "s3cret")
	token, _, err := op.Login("s3cret")
	require.NoError(t, err)
	handler := op.Middleware(okHandler())

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/train", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusNoContent {
				assert.Equal(t, RoleOperator, rec.Header().Get("X-Role"))
			}
		})
	}
}

func TestMiddlewareRejectsForeignTokens(t *testing.T) {
	op := newOperator(t, "s3cret")
	handler := op.Middleware(okHandler())

	other, _, err := NewTokenService("other-secret", time.Hour).GenerateToken(RoleOperator, RoleOperator)
	require.NoError(t, err)
	viewer, _, err := op.tokens.GenerateToken("someone", "viewer")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleOperator}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{other, viewer, none} {
		req := httptest.NewRequest(http.MethodPost, "/api/train", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestDisabledOperatorAllowsEverything(t *testing.T) {
	op := newOperator(t, "")
	assert.False(t, op.Enabled())

	_, _, err := op.Login("anything")
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	op.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGenerateTokenRequiresSubject(t *testing.T) {
	_, _, err := NewTokenService("s", 0).GenerateToken("", RoleOperator)
	assert.Error(t, err)
}
