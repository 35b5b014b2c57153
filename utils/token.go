package authUtils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// SessionClaims are the fields carried by a session token.
type SessionClaims struct {
	SessionID string
	UserID    string
	Role      string
}

// GenerateToken signs a session token that expires at expiresAt
func GenerateToken(secret, sessionID, userID, role string, expiresAt time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not configured")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid":     sessionID,
		"user_id": userID,
		"role":    role,
		"exp":     expiresAt.Unix(),
	})

	return token.SignedString([]byte(secret))
}

// ParseToken validates a session token and extracts its claims
func ParseToken(secret, tokenString string) (*SessionClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	sid, _ := claims["sid"].(string)
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if sid == "" || userID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &SessionClaims{SessionID: sid, UserID: userID, Role: role}, nil
}
