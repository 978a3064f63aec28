package services

import (
	"fmt"
	"log/slog"
	"strconv"
	"taskpulse/internal/config"
	"taskpulse/internal/core/domain"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenService struct {
	log       *slog.Logger
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenService(log *slog.Logger, cfg config.AuthConfig) *TokenService {
	return &TokenService{
		log:       log,
		secretKey: []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		now:       time.Now,
	}
}

func (s *TokenService) GenerateToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ParseToken verifies signature, issuer and expiry and returns the user id in 'sub'.
func (s *TokenService) ParseToken(tokenStr string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		// Ensure signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", domain.ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}
