package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types discriminate the two halves of an issued pair. The auth
// middleware only accepts access tokens and the refresh endpoint only accepts
// refresh tokens.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a token parses but carries the wrong
// token_type claim for the call site.
var ErrWrongTokenType = errors.New("wrong token type")

type jwtCustomClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the access/refresh pair minted on successful OTP verification.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GenerateToken creates a signed JWT of the given type for the provided user ID.
func GenerateToken(secret string, userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	claims := &jwtCustomClaims{
		UserID:    userID.String(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateTokenPair mints an access and a refresh token for the user.
func GenerateTokenPair(secret string, userID uuid.UUID, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	access, err := GenerateToken(secret, userID, TokenTypeAccess, accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := GenerateToken(secret, userID, TokenTypeRefresh, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseToken validates the token, checks its type, and returns the embedded
// user ID.
func ParseToken(secret, tokenString, wantType string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	if claims.TokenType != wantType {
		return uuid.Nil, ErrWrongTokenType
	}

	return uuid.Parse(claims.UserID)
}
