package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/model"
)

func TestAuthHandler_Register_Success(t *testing.T) {
	age := 29
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, req registerRequest) (*authResponse, error) {
			if req.Email != "alice@example.com" || req.Password != "secret1" {
				t.Errorf("req = %+v", req)
			}
			if req.Gender != "female" || req.Age == nil || *req.Age != 29 {
				t.Errorf("profile = %q/%v", req.Gender, req.Age)
			}
			return &authResponse{
				Token:     "jwt-token",
				ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				User: userResponse{
					ID:     testUserID.String(),
					Email:  "alice@example.com",
					Gender: "female",
					Age:    &age,
					Points: 10,
				},
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"email":"alice@example.com","password":"secret1","gender":"female","age":29}`
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp["token"] != "jwt-token" {
		t.Errorf("token = %v, want jwt-token", resp["token"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("user = %v", resp["user"])
	}
	if user["points"] != float64(10) {
		t.Errorf("points = %v, want 10", user["points"])
	}
	if _, ok := user["passwordHash"]; ok {
		t.Error("password hash must not be exposed")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"不正なJSON", `{"email":`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"余分なデータ", `{"email":"a@b.c"}{}`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"メール重複", `{"email":"a@b.c","password":"secret1"}`, model.NewEmailTakenError(), http.StatusConflict, model.ErrCodeEmailTaken},
		{"弱いパスワード", `{"email":"a@b.c","password":"x"}`, model.NewWeakPasswordError(6), http.StatusBadRequest, model.ErrCodeWeakPassword},
		{"内部エラー", `{"email":"a@b.c","password":"secret1"}`, errors.New("db down"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, req registerRequest) (*authResponse, error) {
					if tt.err == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Register(w, req)

			assertAPIError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*authResponse, error) {
			if password != "secret1" {
				return nil, model.NewInvalidCredentialsError()
			}
			return &authResponse{Token: "jwt-token"}, nil
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"secret1"}`)))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"wrong"}`)))
	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	svc := &mockAuthService{
		forgotPasswordFn: func(ctx context.Context, email string) (string, error) {
			if email == "nobody@example.com" {
				return "", model.NewUserNotFoundError()
			}
			return "reset-token", nil
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.ForgotPassword(w, httptest.NewRequest(http.MethodPost, "/api/forgot-password",
		bytes.NewBufferString(`{"email":"alice@example.com"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp forgotPasswordResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ResetToken != "reset-token" || resp.Message == "" {
		t.Errorf("resp = %+v", resp)
	}

	w = httptest.NewRecorder()
	h.ForgotPassword(w, httptest.NewRequest(http.MethodPost, "/api/forgot-password",
		bytes.NewBufferString(`{"email":"nobody@example.com"}`)))
	assertAPIError(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	var gotToken, gotPassword string
	svc := &mockAuthService{
		resetPasswordFn: func(ctx context.Context, token, newPassword string) error {
			gotToken, gotPassword = token, newPassword
			if token == "expired" {
				return model.NewInvalidResetTokenError()
			}
			return nil
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.ResetPassword(w, httptest.NewRequest(http.MethodPost, "/api/reset-password",
		bytes.NewBufferString(`{"token":"abc","newPassword":"newsecret"}`)))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotToken != "abc" || gotPassword != "newsecret" {
		t.Errorf("got %q/%q", gotToken, gotPassword)
	}

	w = httptest.NewRecorder()
	h.ResetPassword(w, httptest.NewRequest(http.MethodPost, "/api/reset-password",
		bytes.NewBufferString(`{"token":"expired","newPassword":"newsecret"}`)))
	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeInvalidResetToken)
}

func TestAuthHandler_Check(t *testing.T) {
	svc := &mockAuthService{
		checkFn: func(ctx context.Context, raw string) bool {
			return raw == "good-token"
		},
	}
	h := NewAuthHandler(svc)

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"有効なトークン", "Bearer good-token", true},
		{"無効なトークン", "Bearer bad-token", false},
		{"トークンなし", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.Check(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var resp checkResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.IsAuthenticated != tt.want {
				t.Errorf("isAuthenticated = %v, want %v", resp.IsAuthenticated, tt.want)
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	claims := &model.TokenClaims{UserID: testUserID, TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	var revoked string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, c *model.TokenClaims) error {
			revoked = c.TokenID
			return nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req = req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if revoked != "jti-1" {
		t.Errorf("revoked = %q, want jti-1", revoked)
	}
}

func TestAuthHandler_Logout_WithoutClaims(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, c *model.TokenClaims) error {
			t.Fatal("service should not be called")
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}
