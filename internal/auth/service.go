// Package auth はメールアドレスとパスワードによる認証、アクセストークン管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/photorate/internal/ledger"
	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/repository"
	"github.com/hitoshi/photorate/internal/security"
)

const (
	// bcryptが扱える最大バイト数。
	maxPasswordBytes = 72
	maxAge           = 150
	resetTokenBytes  = 20
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	ResetTokenTTL time.Duration
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Gender   model.Gender
	Age      *int
}

// AuthResult は登録・ログイン成功時に返すトークンとユーザー。
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	revokedRepo repository.RevokedTokenRepository
	tokens      *TokenManager
	policy      ledger.Policy
	sanitizer   security.TextSanitizerService
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	revokedRepo repository.RevokedTokenRepository,
	tokens *TokenManager,
	policy ledger.Policy,
	sanitizer security.TextSanitizerService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		revokedRepo: revokedRepo,
		tokens:      tokens,
		policy:      policy,
		sanitizer:   sanitizer,
		config:      config,
		now:         time.Now,
	}
}

// normalizeEmail はメールアドレスを小文字化して検証する。
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.NewInvalidEmailError()
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidEmailError()
	}
	return email, nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return model.NewWeakPasswordError(MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError()
	}
	return nil
}

// Register はユーザーを登録し、初期ポイントを付与してアクセストークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if !in.Gender.Valid() {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("gender %q", in.Gender))
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > maxAge) {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("age %d", *in.Age))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           model.NewID(),
		Email:        email,
		PasswordHash: hash,
		Name:         s.sanitizer.SanitizeName(in.Name),
		Gender:       in.Gender,
		Age:          in.Age,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前確認と同時に登録された場合は一意制約で検出する
	if err := s.userRepo.Create(ctx, user, s.policy.SignupGrant(user.ID)); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.Int("points", user.Points),
	)

	return s.issue(user)
}

// Login はメールアドレスとパスワードを検証してアクセストークンを発行する。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返す。
func (s *Service) Login(ctx context.Context, rawEmail, password string) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID.String()))
	return s.issue(user)
}

func (s *Service) issue(user *model.User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// ForgotPassword はパスワードリセットトークンを発行する。
// トークンはハッシュのみ保存し、平文は呼び出し元に一度だけ返す。
func (s *Service) ForgotPassword(ctx context.Context, rawEmail string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" {
		return "", model.NewInvalidEmailError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	token, err := generateResetToken()
	if err != nil {
		return "", err
	}

	reset := &model.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: s.now().Add(s.config.ResetTokenTTL),
	}
	if err := s.userRepo.SetResetToken(ctx, reset); err != nil {
		return "", fmt.Errorf("リセットトークンの保存に失敗しました: %w", err)
	}

	slog.Info("password reset requested", slog.String("user_id", user.ID.String()))
	return token, nil
}

// ResetPassword は有効なリセットトークンでパスワードを再設定する。
// 使用したトークンは無効化される。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return model.NewInvalidResetTokenError()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.FindByResetTokenHash(ctx, hashResetToken(token))
	if err != nil {
		return fmt.Errorf("リセットトークンの検索に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewInvalidResetTokenError()
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", user.ID.String()))
	return nil
}

// Verify はアクセストークンを検証し、失効済みでなければ内容を返す。
func (s *Service) Verify(ctx context.Context, raw string) (*model.TokenClaims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	revoked, err := s.revokedRepo.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("トークン失効状態の確認に失敗しました: %w", err)
	}
	if revoked {
		return nil, model.NewUnauthorizedError()
	}
	return claims, nil
}

// Check はトークンが有効かどうかを返す。
// ストアの障害時も認証済みとは扱わない。
func (s *Service) Check(ctx context.Context, raw string) bool {
	if raw == "" {
		return false
	}
	_, err := s.Verify(ctx, raw)
	return err == nil
}

// Logout はトークンを有効期限まで失効済みとして記録する。
func (s *Service) Logout(ctx context.Context, claims *model.TokenClaims) error {
	if claims == nil || claims.TokenID == "" {
		return model.NewUnauthorizedError()
	}

	err := s.revokedRepo.Revoke(ctx, &model.RevokedToken{
		JTI:       claims.TokenID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("トークンの失効に失敗しました: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", claims.UserID.String()))
	return nil
}

// generateResetToken は暗号的に安全なリセットトークンを生成する。
func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// hashResetToken は保存用のトークンハッシュを返す。
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
