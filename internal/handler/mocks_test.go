package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn       func(ctx context.Context, req registerRequest) (*authResponse, error)
	loginFn          func(ctx context.Context, email, password string) (*authResponse, error)
	forgotPasswordFn func(ctx context.Context, email string) (string, error)
	resetPasswordFn  func(ctx context.Context, token, newPassword string) error
	checkFn          func(ctx context.Context, raw string) bool
	logoutFn         func(ctx context.Context, claims *model.TokenClaims) error
}

func (m *mockAuthService) Register(ctx context.Context, req registerRequest) (*authResponse, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, req)
	}
	return &authResponse{}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*authResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &authResponse{}, nil
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(ctx, email)
	}
	return "", nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, token, newPassword)
	}
	return nil
}

func (m *mockAuthService) Check(ctx context.Context, raw string) bool {
	if m.checkFn != nil {
		return m.checkFn(ctx, raw)
	}
	return false
}

func (m *mockAuthService) Logout(ctx context.Context, claims *model.TokenClaims) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, claims)
	}
	return nil
}

// mockPhotoService はPhotoServiceInterfaceのモック実装。
type mockPhotoService struct {
	uploadFn         func(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error)
	myPhotosFn       func(ctx context.Context, userID model.ID) (*myPhotosResponse, error)
	addToPoolFn      func(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error)
	removeFromPoolFn func(ctx context.Context, userID, photoID model.ID) error
}

func (m *mockPhotoService) Upload(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, userID, body, contentType, originalName)
	}
	return &uploadResponse{}, nil
}

func (m *mockPhotoService) MyPhotos(ctx context.Context, userID model.ID) (*myPhotosResponse, error) {
	if m.myPhotosFn != nil {
		return m.myPhotosFn(ctx, userID)
	}
	return &myPhotosResponse{Photos: []photoResponse{}}, nil
}

func (m *mockPhotoService) AddToPool(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error) {
	if m.addToPoolFn != nil {
		return m.addToPoolFn(ctx, userID, photoID)
	}
	return &poolAddResponse{}, nil
}

func (m *mockPhotoService) RemoveFromPool(ctx context.Context, userID, photoID model.ID) error {
	if m.removeFromPoolFn != nil {
		return m.removeFromPoolFn(ctx, userID, photoID)
	}
	return nil
}

// mockLedgerService はLedgerServiceInterfaceのモック実装。
type mockLedgerService struct {
	pointsFn func(ctx context.Context, userID model.ID, limit int) (*pointsResponse, error)
}

func (m *mockLedgerService) Points(ctx context.Context, userID model.ID, limit int) (*pointsResponse, error) {
	if m.pointsFn != nil {
		return m.pointsFn(ctx, userID, limit)
	}
	return &pointsResponse{History: []transactionResponse{}}, nil
}

// mockRatingService はRatingServiceInterfaceのモック実装。
type mockRatingService struct {
	candidatesFn func(ctx context.Context, userID model.ID, filter model.CandidateFilter) ([]candidateResponse, error)
	submitFn     func(ctx context.Context, userID, photoID model.ID, score int) (int, error)
	statisticsFn func(ctx context.Context, userID, photoID model.ID) (*statisticsResponse, error)
}

func (m *mockRatingService) Candidates(ctx context.Context, userID model.ID, filter model.CandidateFilter) ([]candidateResponse, error) {
	if m.candidatesFn != nil {
		return m.candidatesFn(ctx, userID, filter)
	}
	return []candidateResponse{}, nil
}

func (m *mockRatingService) Submit(ctx context.Context, userID, photoID model.ID, score int) (int, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, photoID, score)
	}
	return 0, nil
}

func (m *mockRatingService) Statistics(ctx context.Context, userID, photoID model.ID) (*statisticsResponse, error) {
	if m.statisticsFn != nil {
		return m.statisticsFn(ctx, userID, photoID)
	}
	return &statisticsResponse{}, nil
}

// --- テストヘルパー ---

var (
	testUserID  = model.MustParseID("7f1c2a9e-3b4d-4e5f-8a6b-0c1d2e3f4a5b")
	testPhotoID = model.MustParseID("a3e8f1d2-6c7b-4a59-9e0d-1f2a3b4c5d6e")
)

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID model.ID) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// assertAPIError はステータスコードとエラーコードを検証するヘルパー。
func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d", w.Code, wantStatus)
	}
	if got := parseAPIErrorResponse(t, w); got.Code != wantCode {
		t.Errorf("code = %q, want %q", got.Code, wantCode)
	}
}
