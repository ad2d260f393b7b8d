package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/photorate/internal/model"
)

// MinSecretLength はHS256署名鍵の最小バイト数。
const MinSecretLength = 32

const tokenIssuer = "photorate"

// ErrInvalidToken はトークンの署名・形式・有効期限が不正な場合に返す。
var ErrInvalidToken = errors.New("invalid token")

// TokenManager はHS256署名のJWTアクセストークンを発行・検証する。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
// 署名鍵がMinSecretLength未満の場合はエラーを返す。
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive: %s", ttl)
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue はユーザーのアクセストークンを発行する。
func (m *TokenManager) Issue(userID model.ID) (string, *model.TokenClaims, error) {
	now := m.now()
	claims := &model.TokenClaims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse はトークンの署名と有効期限を検証し、内容を返す。
// HMAC以外の署名方式は拒否する。
func (m *TokenManager) Parse(raw string) (*model.TokenClaims, error) {
	var registered jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &registered, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := model.ParseID(registered.Subject)
	if err != nil || registered.ID == "" {
		return nil, ErrInvalidToken
	}

	return &model.TokenClaims{
		UserID:    userID,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}
