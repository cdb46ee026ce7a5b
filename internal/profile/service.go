// Package profile はログインユーザー自身のプロフィール更新とパスワード変更を提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/imagestore"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	v "github.com/hitoshi/todoapi/internal/validation"
)

// ImageSaver はプロフィール画像を保存し、新しいファイル名を返すインターフェース。
type ImageSaver interface {
	Save(dataURL, oldName string) (string, error)
}

var _ ImageSaver = (*imagestore.Saver)(nil)

// Service はプロフィールに関するビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	images     ImageSaver
	bcryptCost int
	location   *time.Location
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, images ImageSaver, bcryptCost int, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		userRepo:   userRepo,
		images:     images,
		bcryptCost: bcryptCost,
		location:   location,
		now:        time.Now,
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.location).Truncate(time.Second)
}

// Update は名前とプロフィール写真のうち指定されたものを更新する。
// 名前、写真の順に検証し、写真は検証に通った時点で保存する。
func (s *Service) Update(ctx context.Context, user *model.User, in v.Input) (*model.User, error) {
	updated := *user
	changed := false

	if in.Has("name") {
		validator := v.New(in).Field("name", v.String(), v.Min(2), v.Max(100))
		if validator.Fails() {
			return nil, model.NewValidationError(validator.Errors())
		}
		updated.Name = in.String("name")
		changed = true
	}

	if in.Has("profile_photo") {
		validator := v.New(in).Field("profile_photo", v.String())
		if validator.Fails() {
			return nil, model.NewValidationError(validator.Errors())
		}

		name, err := s.images.Save(in.String("profile_photo"), user.ProfilePhoto)
		if err != nil {
			var uploadErr *imagestore.UploadError
			if errors.As(err, &uploadErr) {
				return nil, model.NewUploadFailedError(uploadErr.Message)
			}
			return nil, fmt.Errorf("failed to save profile photo: %w", err)
		}
		updated.ProfilePhoto = name
		changed = true
	}

	if !changed {
		return nil, model.NewNothingToUpdateError("Profile update failed", "profile")
	}

	updated.UpdatedAt = s.clock()
	if err := s.userRepo.UpdateProfile(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated", slog.Int64("user_id", user.ID))
	return &updated, nil
}

// ChangePassword は現在のパスワードを確認した上で新しいパスワードに変更する。
// 現在のパスワードが一致しない場合はログイン失敗と同じエラーを返す。
func (s *Service) ChangePassword(ctx context.Context, user *model.User, in v.Input) (*model.User, error) {
	validator := v.New(in).
		Field("old_password", v.Required(), v.String()).
		Field("password", v.Required(), v.String(), v.Confirmed(), v.Min(6), v.Max(100))
	if validator.Fails() {
		return nil, model.NewValidationError(validator.Errors())
	}

	if !auth.CheckPassword(user.PasswordHash, in.String("old_password")) {
		slog.Warn("password change rejected", slog.Int64("user_id", user.ID))
		return nil, model.NewLoginFailedError("email_password")
	}

	hash, err := auth.HashPassword(in.String("password"), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	updated := *user
	updated.PasswordHash = hash
	updated.UpdatedAt = s.clock()
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash, updated.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.Int64("user_id", user.ID))
	return &updated, nil
}
