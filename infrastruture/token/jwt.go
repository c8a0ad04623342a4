package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// PlayerClaim is the claim carrying the player id.
const PlayerClaim = "player_id"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrIssuerMismatch = errors.New("token issued by someone else")
	ErrMissingPlayer  = errors.New("token carries no player id")
)

// JwtService handles JWT operations.
// Implements i.Tokenizer.
type JwtService struct {
	secretKey string
	issuer    string
}

// NewJwtService creates a new JWT Service with the provided configuration.
func NewJwtService(secretKey, issuer string) i.Tokenizer {
	return &JwtService{
		secretKey: secretKey,
		issuer:    issuer,
	}
}

// Generate creates a JWT for the given claims. The issuer and expiry claims
// are always set by the service.
func (s *JwtService) Generate(claims map[string]interface{}, expTime time.Duration) (string, error) {
	jwtClaims := jwt.MapClaims{}
	for key, val := range claims {
		jwtClaims[key] = val
	}
	jwtClaims["exp"] = time.Now().UTC().Add(expTime).Unix()
	jwtClaims["iss"] = s.issuer

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	return token.SignedString([]byte(s.secretKey))
}

// Decode parses and validates a JWT, returning the claims if valid.
func (s *JwtService) Decode(tokenString string) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, s.getSigningKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, ErrIssuerMismatch
	}
	return claims, nil
}

// getSigningKey returns the signing key for token validation.
func (s *JwtService) getSigningKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return []byte(s.secretKey), nil
}

// IssuePlayer creates a token identifying a player.
func IssuePlayer(t i.Tokenizer, id uuid.UUID, ttl time.Duration) (string, error) {
	return t.Generate(map[string]interface{}{PlayerClaim: id.String()}, ttl)
}

// PlayerID extracts the player id from decoded claims.
func PlayerID(claims map[string]interface{}) (uuid.UUID, error) {
	raw, ok := claims[PlayerClaim].(string)
	if !ok {
		return uuid.Nil, ErrMissingPlayer
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrMissingPlayer
	}
	return id, nil
}
