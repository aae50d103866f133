package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken 表示请求未携带 Bearer token
var ErrMissingToken = errors.New("missing bearer token")

// Claims 是审核人 token 中携带的信息
type Claims struct {
	Reviewer string `json:"reviewer"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a token for a reviewer.
func GenerateJWT(reviewer, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Reviewer: reviewer,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT validates the token and returns its claims.
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Reviewer == "" {
		return nil, jwt.ErrTokenMalformed
	}
	return claims, nil
}

// ExtractToken 从 Authorization 头中取出 Bearer token
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
