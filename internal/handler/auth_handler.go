package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register はユーザーを登録しアクセストークンを発行する。
	Register(ctx context.Context, req registerRequest) (*authResponse, error)
	// Login はメールアドレスとパスワードを検証しアクセストークンを発行する。
	Login(ctx context.Context, email, password string) (*authResponse, error)
	// ForgotPassword はパスワードリセットトークンを発行する。
	ForgotPassword(ctx context.Context, email string) (string, error)
	// ResetPassword はリセットトークンを検証してパスワードを更新する。
	ResetPassword(ctx context.Context, token, newPassword string) error
	// Check はトークンが有効かどうかを返す。
	Check(ctx context.Context, raw string) bool
	// Logout はトークンを失効させる。
	Logout(ctx context.Context, claims *model.TokenClaims) error
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Age      *int   `json:"age"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// userResponse はユーザー情報のレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
	Age    *int   `json:"age,omitempty"`
	Points int    `json:"points"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type forgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

type checkResponse struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

// Register はユーザーを登録する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login はログインしてアクセストークンを返す。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ForgotPassword はパスワードリセットトークンを発行する。
// POST /api/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forgotPasswordResponse{
		Message:    "パスワードリセットトークンを発行しました。",
		ResetToken: token,
	})
}

// ResetPassword はリセットトークンでパスワードを再設定する。
// POST /api/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "パスワードを再設定しました。"})
}

// Check はリクエストのトークンが有効かどうかを返す。未認証でも200で応答する。
// GET /api/auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ok := h.service.Check(r.Context(), middleware.BearerToken(r))
	writeJSON(w, http.StatusOK, checkResponse{IsAuthenticated: ok})
}

// Logout は現在のトークンを失効させる。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), claims); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "ログアウトしました。"})
}
