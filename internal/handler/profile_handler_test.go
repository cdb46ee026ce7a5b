package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

func TestProfileHandler_Update_Success(t *testing.T) {
	svc := &mockProfileService{
		updateFn: func(ctx context.Context, user *model.User, in validation.Input) (*model.User, error) {
			updated := *user
			updated.Name = in.String("name")
			return &updated, nil
		},
	}
	w := httptest.NewRecorder()
	req := withUser(jsonRequest(http.MethodPut, "/api/profile", `{"name":"Alice B"}`), testUser)
	NewProfileHandler(svc, testBaseURL).Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "successful" || env.Total == nil || *env.Total != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	if !strings.Contains(string(env.Data[0]), `"name":"Alice B"`) {
		t.Errorf("user = %s", env.Data[0])
	}
	if !strings.Contains(string(env.Data[0]), `"profile_photo":null`) {
		t.Errorf("user = %s", env.Data[0])
	}
}

func TestProfileHandler_Update_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantBody string
	}{
		{
			name:     "nothing to update",
			err:      model.NewNothingToUpdateError("Profile update failed", "profile"),
			wantBody: `{"message":"Profile update failed","errors":{"profile":["No data to update"]}}`,
		},
		{
			name:     "upload failed",
			err:      model.NewUploadFailedError("Invalid image format"),
			wantBody: `{"message":"Image upload failed","errors":{"image_format":["Invalid image format"]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProfileService{
				updateFn: func(ctx context.Context, user *model.User, in validation.Input) (*model.User, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			NewProfileHandler(svc, testBaseURL).Update(w, withUser(jsonRequest(http.MethodPut, "/api/profile", `{}`), testUser))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s", got)
			}
		})
	}
}

func TestProfileHandler_ChangePassword(t *testing.T) {
	svc := &mockProfileService{
		changePasswordFn: func(ctx context.Context, user *model.User, in validation.Input) (*model.User, error) {
			// パスワードは前後の空白を保持する
			if in.String("password") != " newpass " {
				t.Errorf("password = %q", in.String("password"))
			}
			return user, nil
		},
	}
	w := httptest.NewRecorder()
	req := withUser(jsonRequest(http.MethodPut, "/api/profile/change-password",
		`{"old_password":"secret1","password":" newpass ","password_confirmation":" newpass "}`), testUser)
	NewProfileHandler(svc, testBaseURL).ChangePassword(w, req)

	env := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || env.Message != "Password update successful" || len(env.Data) != 1 {
		t.Errorf("status = %d, envelope = %+v", w.Code, env)
	}
}
