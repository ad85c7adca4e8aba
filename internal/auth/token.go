package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domain "todoapp/internal/domain/errors"
)

const (
	// MinSecretLen — минимальная длина секрета подписи, сервис не стартует с более коротким.
	MinSecretLen = 32

	DefaultTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService выпускает и проверяет подписанные токены сессии.
// Секрет и TTL передаются явно при создании, глобального состояния нет.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLen {
		return nil, domain.ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

func (s *TokenService) Issue(accountID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify возвращает идентификатор аккаунта из валидного токена.
// Наружу уходят ровно два вида отказов: ErrTokenExpired, когда подпись верна,
// но срок действия вышел, и ErrTokenInvalid во всех остальных случаях.
func (s *TokenService) Verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, domain.ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", domain.ErrTokenInvalid
	}

	accountID := claims.Subject
	if accountID == "" {
		accountID = claims.UserID
	}
	if accountID == "" {
		return "", domain.ErrTokenInvalid
	}
	return accountID, nil
}

// Refresh проверяет ещё действующий токен и выпускает новый с полным TTL.
// Просроченный токен обновить нельзя.
func (s *TokenService) Refresh(raw string) (string, error) {
	accountID, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	return s.Issue(accountID)
}
