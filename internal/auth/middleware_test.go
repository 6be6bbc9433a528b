package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestMiddleware(t *testing.T) {
	svc := NewService(nil)
	userID := uuid.New()
	token, err := generateToken(userID)
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	handler := svc.Middleware(func(c echo.Context) error {
		got, err := UserID(c)
		if err != nil {
			t.Errorf("UserID() error = %v", err)
		}
		if got != userID {
			t.Errorf("UserID() = %v, want %v", got, userID)
		}
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			status := rec.Code
			if err := handler(c); err != nil {
				he, ok := err.(*echo.HTTPError)
				if !ok {
					t.Fatalf("handler error = %v", err)
				}
				status = he.Code
			}
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestUserIDWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, err := UserID(c); err == nil {
		t.Error("UserID() on a bare context should fail")
	}
}
