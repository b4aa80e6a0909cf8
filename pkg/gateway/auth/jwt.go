package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/maternal-risk/platform/pkg/common/models"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTManager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	nowFunc    func() time.Time
}

func NewJWTManager(secret, issuer string, ttl time.Duration) (*JWTManager, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTManager{
		signingKey: []byte(secret),
		issuer:     issuer,
		ttl:        ttl,
		nowFunc:    time.Now,
	}, nil
}

// Claims carry the account fields the prediction pages need, so handlers do
// not look the user up on every request.
type Claims struct {
	UserID      uuid.UUID `json:"uid"`
	Username    string    `json:"username"`
	NamaLengkap string    `json:"nama_lengkap"`
	Profesi     string    `json:"profesi"`
	jwt.RegisteredClaims
}

func (m *JWTManager) IssueToken(user models.User) (string, time.Time, error) {
	now := m.nowFunc()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID:      user.ID,
		Username:    user.Username,
		NamaLengkap: user.NamaLengkap,
		Profesi:     user.Profesi,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (m *JWTManager) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token empty", ErrInvalidToken)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}
