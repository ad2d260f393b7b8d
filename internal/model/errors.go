// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, photo, points, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidScore       = "INVALID_SCORE"
	ErrCodeInvalidProfile     = "INVALID_PROFILE"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePhotoNotFound      = "PHOTO_NOT_FOUND"
	ErrCodeSelfRating         = "SELF_RATING"
	ErrCodeAlreadyRated       = "ALREADY_RATED"
	ErrCodeNotPhotoOwner      = "NOT_PHOTO_OWNER"
	ErrCodeNotEnoughPoints    = "NOT_ENOUGH_POINTS"
	ErrCodeFileMissing        = "FILE_MISSING"
	ErrCodeInvalidFileType    = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidIDError は不正な識別子エラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %q", raw),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidScoreError はスコア範囲外エラーを生成する。
func NewInvalidScoreError(score int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScore,
		Message:  fmt.Sprintf("無効なスコアです: %d", score),
		Category: "validation",
		Action:   fmt.Sprintf("スコアは%dから%dの整数で指定してください。", MinScore, MaxScore),
	}
}

// NewInvalidProfileError はプロフィール項目の不正エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールが不正です: %s", reason),
		Category: "validation",
		Action:   "性別は male / female、年齢は0以上の整数で指定してください。",
	}
}

// NewInvalidFilterError は評価候補の絞り込み条件の不正エラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("絞り込み条件が不正です: %s", reason),
		Category: "validation",
		Action:   "性別は male / female、年齢は 18-25 / 26-35 / 36-50 / 50+ または ageMin・ageMax で指定してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式の不正エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "有効なメールアドレスを入力してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidResetTokenError はリセットトークンの不正・期限切れエラーを生成する。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Message:  "リセットトークンが無効または期限切れです。",
		Category: "auth",
		Action:   "パスワードリセットを再度申請してください。",
	}
}

// NewWeakPasswordError はパスワード要件未達エラーを生成する。
func NewWeakPasswordError(minLen int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードが短すぎます。",
		Category: "validation",
		Action:   fmt.Sprintf("%d文字以上のパスワードを指定してください。", minLen),
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "メールアドレスを確認してください。",
	}
}

// NewPhotoNotFoundError は写真が見つからない場合のエラーを生成する。
func NewPhotoNotFoundError(photoID ID) *APIError {
	return &APIError{
		Code:     ErrCodePhotoNotFound,
		Message:  fmt.Sprintf("指定された写真が見つかりません: %s", photoID),
		Category: "photo",
		Action:   "写真IDを確認してください。",
	}
}

// NewSelfRatingError は自分の写真を評価しようとした場合のエラーを生成する。
func NewSelfRatingError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfRating,
		Message:  "自分の写真は評価できません。",
		Category: "photo",
		Action:   "他のユーザーの写真を評価してください。",
	}
}

// NewAlreadyRatedError は同じ写真を再度評価しようとした場合のエラーを生成する。
func NewAlreadyRatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRated,
		Message:  "この写真は既に評価済みです。",
		Category: "photo",
		Action:   "別の写真を評価してください。",
	}
}

// NewNotPhotoOwnerError は所有者以外が所有者限定の操作をした場合のエラーを生成する。
func NewNotPhotoOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPhotoOwner,
		Message:  "この写真の統計情報は所有者のみ閲覧できます。",
		Category: "photo",
		Action:   "自分の写真を選択してください。",
	}
}

// NewNotEnoughPointsError はポイント不足エラーを生成する。
func NewNotEnoughPointsError() *APIError {
	return &APIError{
		Code:     ErrCodeNotEnoughPoints,
		Message:  "ポイントが不足しています。",
		Category: "points",
		Action:   "他のユーザーの写真を評価してポイントを獲得してください。",
	}
}

// NewFileMissingError はアップロードファイル未指定エラーを生成する。
func NewFileMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeFileMissing,
		Message:  "アップロードするファイルが指定されていません。",
		Category: "validation",
		Action:   "photoフィールドに画像ファイルを指定してください。",
	}
}

// NewInvalidFileTypeError は許可されていないファイル形式のエラーを生成する。
func NewInvalidFileTypeError(mimeType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFileType,
		Message:  fmt.Sprintf("許可されていないファイル形式です: %s", mimeType),
		Category: "validation",
		Action:   "JPEGまたはPNG形式の画像をアップロードしてください。",
	}
}

// NewFileTooLargeError はファイルサイズ超過エラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  "ファイルサイズが上限を超えています。",
		Category: "validation",
		Action:   fmt.Sprintf("%dMB以下の画像をアップロードしてください。", maxBytes/(1024*1024)),
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterで指定された秒数待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
