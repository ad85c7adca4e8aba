package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "todoapp/internal/domain/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		ttl    time.Duration
		want   struct {
			err error
		}
	}{
		{
			name:   "valid secret",
			secret: testSecret,
			ttl:    time.Hour,
			want: struct {
				err error
			}{
				err: nil,
			},
		},
		{
			name:   "short secret rejected",
			secret: "shouldbeinVaultsecret",
			ttl:    time.Hour,
			want: struct {
				err error
			}{
				err: domain.ErrWeakSecret,
			},
		},
		{
			name:   "empty secret rejected",
			secret: "",
			ttl:    time.Hour,
			want: struct {
				err error
			}{
				err: domain.ErrWeakSecret,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.secret, tt.ttl)
			if tt.want.err != nil {
				assert.Equal(t, tt.want.err, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestNewTokenServiceDefaultTTL(t *testing.T) {
	svc, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.ttl)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := svc.Issue("account-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	accountID, err := svc.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "account-42", accountID)
}

func TestVerifyRejections(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	expiredToken := signToken(t, testSecret, Claims{
		UserID: "account-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-42",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	otherSecretToken := signToken(t, "ffffffffffffffffffffffffffffffff", Claims{
		UserID: "account-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	noSubjectToken := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	validToken, err := svc.Issue("account-42")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  struct {
			err error
		}
	}{
		{
			name:  "expired token",
			token: expiredToken,
			want: struct {
				err error
			}{
				err: domain.ErrTokenExpired,
			},
		},
		{
			name:  "wrong secret",
			token: otherSecretToken,
			want: struct {
				err error
			}{
				err: domain.ErrTokenInvalid,
			},
		},
		{
			name:  "tampered payload",
			token: validToken[:len(validToken)-4] + "xxxx",
			want: struct {
				err error
			}{
				err: domain.ErrTokenInvalid,
			},
		},
		{
			name:  "garbage token",
			token: "not.a.token",
			want: struct {
				err error
			}{
				err: domain.ErrTokenInvalid,
			},
		},
		{
			name:  "no account id claims",
			token: noSubjectToken,
			want: struct {
				err error
			}{
				err: domain.ErrTokenInvalid,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accountID, err := svc.Verify(tt.token)
			assert.Equal(t, tt.want.err, err)
			assert.Empty(t, accountID)
		})
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	claims := Claims{
		UserID: "account-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)
	assert.Equal(t, domain.ErrTokenInvalid, err)
}

func TestVerifyFallsBackToUserIDClaim(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	token := signToken(t, testSecret, Claims{
		UserID: "account-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	accountID, err := svc.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "account-42", accountID)
}

func TestRefresh(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	original, err := svc.Issue("account-42")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(original)
	assert.NoError(t, err)
	assert.NotEmpty(t, refreshed)

	accountID, err := svc.Verify(refreshed)
	assert.NoError(t, err)
	assert.Equal(t, "account-42", accountID)
}

func TestRefreshExpiredFails(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	expiredToken := signToken(t, testSecret, Claims{
		UserID: "account-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	refreshed, err := svc.Refresh(expiredToken)
	assert.Equal(t, domain.ErrTokenExpired, err)
	assert.Empty(t, refreshed)
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
