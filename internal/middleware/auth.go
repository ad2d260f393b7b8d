// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/photorate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みトークンを格納するためのキー。
var claimsContextKey = contextKey("token_claims")

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*model.TokenClaims, error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない・形式が異なる場合は空文字を返す。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みのトークン内容（ユーザーIDを含む）をリクエストコンテキストに注入する。
// 未認証・失効済みのトークンには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to verify token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			setRequestUser(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// ClaimsFromContext はリクエストコンテキストから検証済みトークンの内容を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*model.TokenClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*model.TokenClaims)
	if !ok || claims == nil || claims.UserID.IsZero() {
		return nil, fmt.Errorf("token claims not found in context")
	}
	return claims, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (model.ID, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return model.NilID, fmt.Errorf("user ID not found in context")
	}
	return claims.UserID, nil
}

// ContextWithClaims はコンテキストに検証済みトークンの内容を注入する。
func ContextWithClaims(ctx context.Context, claims *model.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ContextWithUserID はコンテキストにユーザーIDのみを持つトークン内容を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID model.ID) context.Context {
	return ContextWithClaims(ctx, &model.TokenClaims{UserID: userID})
}
