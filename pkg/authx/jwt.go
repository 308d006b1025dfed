package authx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTVerifier signs and verifies HS256 access tokens.
type JWTVerifier struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
}

// NewJWTVerifier creates a verifier for the given secret. Zero TTL defaults to
// seven days.
func NewJWTVerifier(secretKey string, tokenTTL time.Duration, issuer string) *JWTVerifier {
	if tokenTTL == 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	if issuer == "" {
		issuer = "astra-backend"
	}
	return &JWTVerifier{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		issuer:    issuer,
	}
}

type jwtClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Sign issues a token for the given subject. Each token carries a unique id
// so it can be revoked individually.
func (j *JWTVerifier) Sign(subject, email string) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", authxErrors.NewWithCause(ErrTokenGeneration, err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the token's claims.
func (j *JWTVerifier) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, authxErrors.NewWithCause(ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, authxErrors.New(ErrInvalidToken)
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok {
		return nil, authxErrors.NewWithMessage(ErrInvalidToken, "unexpected claims type")
	}

	out := &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
