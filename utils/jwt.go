package utils

import (
	"errors"
	"os"
	"time"

	"profitpilot/config"

	"github.com/golang-jwt/jwt"
)

const sessionTokenIssuer = "profitpilot-onboarding"

// secretKey prefers the loaded config, then the environment, then a development fallback.
func secretKey() []byte {
	if config.AppConfig.JWTSecret != "" {
		return []byte(config.AppConfig.JWTSecret)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("profitpilot-dev-secret")
}

// GenerateSessionToken signs a token whose subject is the onboarding session ID.
func GenerateSessionToken(sessionID string, duration time.Duration) (string, error) {
	if sessionID == "" {
		return "", errors.New("session ID is required")
	}
	claims := jwt.StandardClaims{
		Subject:   sessionID,
		Issuer:    sessionTokenIssuer,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ExtractSessionID validates a session token and returns its subject.
func ExtractSessionID(tokenString string) (string, error) {
	var claims jwt.StandardClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Issuer != sessionTokenIssuer {
		return "", errors.New("invalid session token")
	}
	if claims.Subject == "" {
		return "", errors.New("session token does not contain a subject")
	}
	return claims.Subject, nil
}
