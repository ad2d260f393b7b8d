// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/photorate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを残高0で作成し、grantを同一トランザクションで適用する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User, grant []model.PointMovement) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.ID) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// SetResetToken はパスワードリセットトークンのハッシュと有効期限を保存する。
	SetResetToken(ctx context.Context, reset *model.PasswordReset) error

	// FindByResetTokenHash は有効期限内のリセットトークンハッシュでユーザーを検索する。
	// 見つからない・期限切れの場合はnilを返す。
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*model.User, error)

	// UpdatePassword はパスワードハッシュを更新し、リセットトークンを消去する。
	UpdatePassword(ctx context.Context, id model.ID, passwordHash string) error

	// ClearExpiredResetTokens は期限切れのリセットトークンを消去し、件数を返す。
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

// PhotoRepository は写真データの永続化インターフェース。
type PhotoRepository interface {
	// CreateWithMovements は写真レコードを作成し、movementsを同一トランザクションで適用する。
	// 残高不足の場合はErrInsufficientPointsを返し、写真は作成されない。
	// 戻り値は適用後の各ユーザーの残高。
	CreateWithMovements(ctx context.Context, photo *model.Photo, movements []model.PointMovement) (map[model.ID]int, error)

	// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.ID) (*model.Photo, error)

	// ListByOwnerWithState は所有者の写真一覧を評価プール状態・評価件数付きで返す。
	// created_at降順で返す。
	ListByOwnerWithState(ctx context.Context, ownerID model.ID) ([]model.PhotoWithState, error)

	// ReferencedFileNames はfileNamesのうち写真レコードから参照されているものを返す。
	ReferencedFileNames(ctx context.Context, fileNames []string) (map[string]bool, error)
}

// PoolRepository は評価プール（所有者ごとの評価対象セット）の永続化インターフェース。
type PoolRepository interface {
	// Add は写真を所有者の評価プールに追加する。
	// 追加された場合のみchargeを同一トランザクションで適用する。既に存在する場合は何もしない。
	// 戻り値は追加されたかどうかと所有者の残高。
	Add(ctx context.Context, ownerID, photoID model.ID, charge []model.PointMovement) (bool, int, error)

	// Remove は写真を所有者の評価プールから削除する。削除されたかどうかを返す。
	Remove(ctx context.Context, ownerID, photoID model.ID) (bool, error)
}

// RatingRepository は評価データの永続化インターフェース。
type RatingRepository interface {
	// CreateWithMovements は評価を追加し、movementsを同一トランザクションで適用する。
	// 評価者の性別・年齢は挿入時点のユーザー情報から記録する。
	// 既に評価済みの場合はErrAlreadyRatedを返す。
	CreateWithMovements(ctx context.Context, rating *model.Rating, movements []model.PointMovement) (map[model.ID]int, error)

	// ListCandidates はraterIDが評価可能な写真を最大filter.Limit件返す。
	// 評価プールに含まれ、所有者がraterIDでなく、raterIDが未評価の写真が対象。
	ListCandidates(ctx context.Context, raterID model.ID, filter model.CandidateFilter) ([]model.Candidate, error)

	// ListByPhoto は写真の評価を投稿順で返す。
	ListByPhoto(ctx context.Context, photoID model.ID) ([]model.Rating, error)
}

// LedgerRepository はポイント履歴の参照インターフェース。
type LedgerRepository interface {
	// History はユーザーのポイント増減履歴を新しい順に最大limit件返す。
	History(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error)
}

// RevokedTokenRepository はログアウト済みトークンの永続化インターフェース。
type RevokedTokenRepository interface {
	// Revoke はトークンを失効済みとして記録する。既に記録済みの場合は何もしない。
	Revoke(ctx context.Context, token *model.RevokedToken) error

	// IsRevoked はjtiが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired は有効期限がbeforeより前の記録を削除し、件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
