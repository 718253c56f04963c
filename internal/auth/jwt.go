package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "pokeidle"

// DefaultTokenDuration is how long minted access tokens stay valid
const DefaultTokenDuration = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")
)

// Claims are the JWT claims a client presents when opening a session
type Claims struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs and validates HS256 access tokens. Accounts and logins live
// elsewhere; tokens are minted here for development and tooling.
type Manager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewManager(secret string, duration time.Duration) *Manager {
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &Manager{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateAccessToken creates a new access token for a player
func (m *Manager) GenerateAccessToken(playerID int64, username string) (string, error) {
	now := m.now()
	claims := Claims{
		PlayerID: playerID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", playerID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
