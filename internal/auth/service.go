// Package auth はユーザー登録、ログイン、Bearerトークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	v "github.com/hitoshi/todoapi/internal/validation"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenName  string         // 発行するトークンの名前
	TokenTTL   time.Duration  // 0の場合は無期限
	BcryptCost int            // 0の場合はbcrypt.DefaultCost
	Location   *time.Location // タイムスタンプのタイムゾーン
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	config ServiceConfig,
) *Service {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		config:    config,
		now:       time.Now,
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.config.Location).Truncate(time.Second)
}

// Register はユーザーを登録し、直ちにBearerトークンを発行する。
// メールアドレスは小文字化して保存する。
func (s *Service) Register(ctx context.Context, in v.Input) (*model.User, string, error) {
	email := model.NormalizeEmail(in.String("email"))

	var lookupErr error
	unique := v.Custom(func(attr string, _ any) string {
		exists, err := s.userRepo.EmailExists(ctx, email)
		if err != nil {
			lookupErr = err
			return ""
		}
		if exists {
			return fmt.Sprintf("The %s has already been taken.", attr)
		}
		return ""
	})

	validator := v.New(in).
		Field("name", v.Required(), v.String(), v.Max(100)).
		Field("email", v.Required(), v.Email(), unique).
		Field("password", v.Required(), v.String(), v.Confirmed(), v.Min(6), v.Max(100))
	if lookupErr != nil {
		return nil, "", fmt.Errorf("failed to check email uniqueness: %w", lookupErr)
	}
	if validator.Fails() {
		return nil, "", model.NewValidationError(validator.Errors())
	}

	hash, err := HashPassword(in.String("password"), s.config.BcryptCost)
	if err != nil {
		return nil, "", err
	}

	now := s.clock()
	user := &model.User{
		Name:         in.String("name"),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", model.NewValidationError(model.NewFieldErrors("email", "The email has already been taken."))
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.IssueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered", slog.Int64("user_id", user.ID))
	return user, token, nil
}

// Login はメールアドレスとパスワードを検証し、Bearerトークンを発行する。
// メールアドレス未登録とパスワード不一致はエラーキーで区別する。
func (s *Service) Login(ctx context.Context, in v.Input) (string, error) {
	validator := v.New(in).
		Field("email", v.Required(), v.Email()).
		Field("password", v.Required(), v.String(), v.Min(6), v.Max(100))
	if validator.Fails() {
		return "", model.NewValidationError(validator.Errors())
	}

	user, err := s.userRepo.FindByEmail(ctx, model.NormalizeEmail(in.String("email")))
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewLoginFailedError("email_password")
	}
	if !CheckPassword(user.PasswordHash, in.String("password")) {
		slog.Warn("login password mismatch", slog.Int64("user_id", user.ID))
		return "", model.NewLoginFailedError("credentials")
	}

	token, err := s.IssueToken(ctx, user.ID)
	if err != nil {
		return "", err
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return token, nil
}

// IssueToken はユーザーに新しいBearerトークンを発行し、平文のトークン文字列を返す。
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	plain, err := newPlainToken()
	if err != nil {
		return "", err
	}

	now := s.clock()
	token := &model.AccessToken{
		PublicID:  plain.PublicID,
		UserID:    userID,
		Name:      s.config.TokenName,
		TokenHash: plain.Hash(),
		CreatedAt: now,
	}
	if s.config.TokenTTL > 0 {
		expiresAt := now.Add(s.config.TokenTTL)
		token.ExpiresAt = &expiresAt
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return plain.String(), nil
}

// Authenticate はBearerトークンを検証し、ユーザーとトークンを返す。
// トークンが不正、期限切れ、または所有ユーザーが存在しない場合はnilを返す。
func (s *Service) Authenticate(ctx context.Context, bearer string) (*model.User, *model.AccessToken, error) {
	plain, ok := parsePlainToken(bearer)
	if !ok {
		return nil, nil, nil
	}

	token, err := s.tokenRepo.FindByPublicID(ctx, plain.PublicID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil || !secretMatches(token.TokenHash, plain.Secret) {
		return nil, nil, nil
	}

	now := s.clock()
	if token.Expired(now) {
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, nil
	}

	if err := s.tokenRepo.Touch(ctx, token.ID, now); err != nil {
		return nil, nil, fmt.Errorf("failed to update token usage: %w", err)
	}
	return user, token, nil
}

// Logout はリクエストに使用されたトークンのみを失効させる。
// 同じユーザーの他のトークンは有効なまま残る。
func (s *Service) Logout(ctx context.Context, token *model.AccessToken) error {
	if token == nil {
		return fmt.Errorf("token is required")
	}

	if err := s.tokenRepo.DeleteByID(ctx, token.ID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	slog.Info("user logged out",
		slog.Int64("user_id", token.UserID),
		slog.String("token_id", token.PublicID),
	)
	return nil
}
