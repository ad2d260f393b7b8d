// Package model はドメインモデルを定義する。
package model

import "time"

// Gender はユーザーが申告した性別を表す。
type Gender string

const (
	// GenderUnspecified は性別が未申告であることを表す。
	GenderUnspecified Gender = ""
	// GenderMale は男性。
	GenderMale Gender = "male"
	// GenderFemale は女性。
	GenderFemale Gender = "female"
)

// Valid は既知の性別値（未申告を含む）かどうかを返す。
func (g Gender) Valid() bool {
	switch g {
	case GenderUnspecified, GenderMale, GenderFemale:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID           ID
	Email        string
	PasswordHash string
	Name         string
	Gender       Gender
	Age          *int
	Points       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PasswordReset はパスワードリセット用トークンの保存状態を表す。
// トークン自体は保存せず、SHA-256ハッシュのみを保持する。
type PasswordReset struct {
	UserID    ID
	TokenHash string
	ExpiresAt time.Time
}

// RevokedToken はログアウト済みのアクセストークンを表す。
// ExpiresAtを過ぎたものはトークン自体が無効になるため削除してよい。
type RevokedToken struct {
	JTI       string
	UserID    ID
	ExpiresAt time.Time
}

// TokenClaims は検証済みアクセストークンの内容を表す。
type TokenClaims struct {
	UserID    ID
	TokenID   string // jti
	ExpiresAt time.Time
}
