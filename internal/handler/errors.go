// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/model"
)

// maxJSONBodyBytes はJSONリクエストボディの上限サイズ。
const maxJSONBodyBytes = 1 << 20

// messageResponse は処理結果メッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをvにデコードする。
// 解析に失敗した場合はINVALID_REQUESTのAPIErrorを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.NewInvalidRequestError()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.NewInvalidRequestError()
	}
	return nil
}

// requireUserID は認証済みユーザーIDを返す。取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (model.ID, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.NilID, false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidID, model.ErrCodeInvalidScore,
		model.ErrCodeInvalidProfile, model.ErrCodeInvalidFilter, model.ErrCodeInvalidEmail,
		model.ErrCodeWeakPassword, model.ErrCodeInvalidResetToken,
		model.ErrCodeFileMissing, model.ErrCodeInvalidFileType, model.ErrCodeFileTooLarge:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSelfRating, model.ErrCodeNotPhotoOwner, model.ErrCodeNotEnoughPoints:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodePhotoNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken, model.ErrCodeAlreadyRated:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
