package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetapp/internal/core"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/1").
		JSON(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := w.Header().Get("Location"); got != "/api/transactions/1" {
		t.Errorf("Location = %q", got)
	}
	if strings.TrimSpace(w.Body.String()) != `{"id":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestResponseBuilder_Raw(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Raw("text/csv", []byte("date\n")).Write(w)

	if got := w.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", got)
	}
	if w.Body.String() != "date\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_UnencodableBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"f": func() {}}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorBody
	}{
		{
			name:       "validation with field and line",
			err:        fmt.Errorf("import: %w", &core.ValidationError{Field: "amount", Line: 3, Reason: "invalid amount"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   ErrorBody{Error: "import: line 3: amount: invalid amount", Field: "amount", Line: 3},
		},
		{
			name:       "not found",
			err:        core.NotFound("report", "2024-03"),
			wantStatus: http.StatusNotFound,
			wantBody:   ErrorBody{Error: "report 2024-03 not found"},
		},
		{
			name:       "conflict",
			err:        &core.ConflictError{Kind: "category", Key: "Rent"},
			wantStatus: http.StatusConflict,
			wantBody:   ErrorBody{Error: "category Rent already exists"},
		},
		{
			name:       "internal details are hidden",
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorBody{Error: "internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var got ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got != tt.wantBody {
				t.Errorf("Body = %+v, want %+v", got, tt.wantBody)
			}
		})
	}
}
