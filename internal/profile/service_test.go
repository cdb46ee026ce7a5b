package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todoapi/internal/imagestore"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// --- モック定義 ---

type mockUserRepo struct {
	updateProfileFn  func(ctx context.Context, user *model.User) error
	updatePasswordFn func(ctx context.Context, userID int64, hash string, updatedAt time.Time) error
}

func (m *mockUserRepo) FindByID(_ context.Context, _ int64) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) EmailExists(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error         { return nil }

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID int64, hash string, updatedAt time.Time) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, userID, hash, updatedAt)
	}
	return nil
}

type mockSaver struct {
	saveFn func(dataURL, oldName string) (string, error)
	calls  int
}

func (m *mockSaver) Save(dataURL, oldName string) (string, error) {
	m.calls++
	if m.saveFn != nil {
		return m.saveFn(dataURL, oldName)
	}
	return "profile-image-1.png", nil
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func newTestUser(t *testing.T) *model.User {
	return &model.User{ID: 3, Name: "Alice", Email: "alice@example.com", PasswordHash: hashed(t, "secret1"), ProfilePhoto: "old.png"}
}

func apiErrorOf(t *testing.T, err error) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	return apiErr
}

// --- Update ---

func TestUpdate_NameAndPhoto(t *testing.T) {
	var saved *model.User
	repo := &mockUserRepo{updateProfileFn: func(_ context.Context, u *model.User) error {
		saved = u
		return nil
	}}
	saver := &mockSaver{saveFn: func(dataURL, oldName string) (string, error) {
		if oldName != "old.png" {
			t.Errorf("oldName = %q", oldName)
		}
		return "profile-image-9.png", nil
	}}
	svc := NewService(repo, saver, bcrypt.MinCost, time.UTC)

	got, err := svc.Update(context.Background(), newTestUser(t), validation.Input{
		"name":          "Bob",
		"profile_photo": "data:image/png;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Bob" || got.ProfilePhoto != "profile-image-9.png" {
		t.Errorf("user = %+v", got)
	}
	if saved == nil || saved.ID != 3 || saved.UpdatedAt.IsZero() {
		t.Errorf("saved = %+v", saved)
	}
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSaver{}, bcrypt.MinCost, time.UTC)

	_, err := svc.Update(context.Background(), newTestUser(t), validation.Input{"email": "x@example.com"})
	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeNothingToUpdate || apiErr.Message != "Profile update failed" {
		t.Errorf("err = %+v", apiErr)
	}
	if got := apiErr.Errors.Get("profile"); len(got) != 1 || got[0] != "No data to update" {
		t.Errorf("errors = %v", got)
	}
}

func TestUpdate_InvalidNameSkipsPhoto(t *testing.T) {
	saver := &mockSaver{}
	svc := NewService(&mockUserRepo{}, saver, bcrypt.MinCost, time.UTC)

	_, err := svc.Update(context.Background(), newTestUser(t), validation.Input{
		"name":          "A",
		"profile_photo": "data:image/png;base64,AAAA",
	})
	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Fatalf("Code = %q", apiErr.Code)
	}
	if got := apiErr.Errors.Get("name"); len(got) != 1 || got[0] != "The name must be at least 2 characters." {
		t.Errorf("name errors = %v", got)
	}
	if saver.calls != 0 {
		t.Error("photo must not be saved when name is invalid")
	}
}

func TestUpdate_EmptyPhotoIsNotAString(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSaver{}, bcrypt.MinCost, time.UTC)

	_, err := svc.Update(context.Background(), newTestUser(t), validation.Input{"profile_photo": nil})
	apiErr := apiErrorOf(t, err)
	if got := apiErr.Errors.Get("profile_photo"); len(got) != 1 || got[0] != "The profile photo must be a string." {
		t.Errorf("errors = %v", got)
	}
}

func TestUpdate_UploadErrorMapped(t *testing.T) {
	saver := &mockSaver{saveFn: func(_, _ string) (string, error) {
		return "", &imagestore.UploadError{Message: "Invalid image size. Max image size is 2MB"}
	}}
	repo := &mockUserRepo{updateProfileFn: func(_ context.Context, _ *model.User) error {
		t.Error("profile must not be saved on upload failure")
		return nil
	}}
	svc := NewService(repo, saver, bcrypt.MinCost, time.UTC)

	_, err := svc.Update(context.Background(), newTestUser(t), validation.Input{"profile_photo": "data:image/png;base64,AAAA"})
	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeUploadFailed || apiErr.Message != "Image upload failed" {
		t.Errorf("err = %+v", apiErr)
	}
	if got := apiErr.Errors.Get("image_format"); len(got) != 1 || got[0] != "Invalid image size. Max image size is 2MB" {
		t.Errorf("errors = %v", got)
	}
}

func TestUpdate_StorageErrorPropagates(t *testing.T) {
	saver := &mockSaver{saveFn: func(_, _ string) (string, error) {
		return "", errors.New("disk full")
	}}
	svc := NewService(&mockUserRepo{}, saver, bcrypt.MinCost, time.UTC)

	_, err := svc.Update(context.Background(), newTestUser(t), validation.Input{"profile_photo": "data:image/png;base64,AAAA"})
	var apiErr *model.APIError
	if err == nil || errors.As(err, &apiErr) {
		t.Errorf("expected internal error, got %v", err)
	}
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	var savedHash string
	repo := &mockUserRepo{updatePasswordFn: func(_ context.Context, userID int64, hash string, _ time.Time) error {
		if userID != 3 {
			t.Errorf("userID = %d", userID)
		}
		savedHash = hash
		return nil
	}}
	svc := NewService(repo, &mockSaver{}, bcrypt.MinCost, time.UTC)

	got, err := svc.ChangePassword(context.Background(), newTestUser(t), validation.Input{
		"old_password":          "secret1",
		"password":              "newpass",
		"password_confirmation": "newpass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(savedHash), []byte("newpass")) != nil {
		t.Error("saved hash does not match new password")
	}
	if got.PasswordHash != savedHash {
		t.Error("returned user should carry the new hash")
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	repo := &mockUserRepo{updatePasswordFn: func(_ context.Context, _ int64, _ string, _ time.Time) error {
		t.Error("password must not be updated")
		return nil
	}}
	svc := NewService(repo, &mockSaver{}, bcrypt.MinCost, time.UTC)

	_, err := svc.ChangePassword(context.Background(), newTestUser(t), validation.Input{
		"old_password":          "wrong-pass",
		"password":              "newpass",
		"password_confirmation": "newpass",
	})
	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeLoginFailed {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if got := apiErr.Errors.Get("email_password"); len(got) != 1 {
		t.Errorf("errors = %v", apiErr.Errors.Fields())
	}
}

func TestChangePassword_Validation(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSaver{}, bcrypt.MinCost, time.UTC)

	_, err := svc.ChangePassword(context.Background(), newTestUser(t), validation.Input{
		"password":              "abc",
		"password_confirmation": "abd",
	})
	apiErr := apiErrorOf(t, err)
	if got := apiErr.Errors.Get("old_password"); len(got) != 1 || got[0] != "The old password field is required." {
		t.Errorf("old_password errors = %v", got)
	}
	want := []string{"The password confirmation does not match.", "The password must be at least 6 characters."}
	got := apiErr.Errors.Get("password")
	if len(got) != len(want) {
		t.Fatalf("password errors = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("password[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
