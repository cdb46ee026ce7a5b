package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoapi/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(model.NewFieldErrors("title", "The title field is required.")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	want := `{"message":"Invalid request params","errors":{"title":["The title field is required."]}}` + "\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestWriteErrorResponse_EmptyErrorsIsObject(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())

	want := `{"message":"Access denied","errors":{}}` + "\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	want := `{"message":"Server Error","errors":{}}` + "\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}
