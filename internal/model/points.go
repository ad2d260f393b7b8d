package model

import "time"

// MovementKind はポイント増減の種別を表す。
type MovementKind string

const (
	// MovementSignup は登録時の初期付与。
	MovementSignup MovementKind = "signup"
	// MovementUpload は写真アップロードの消費。
	MovementUpload MovementKind = "upload"
	// MovementPoolAdd は評価プール追加の消費。
	MovementPoolAdd MovementKind = "pool_add"
	// MovementRatingReward は他人の写真を評価したことによる獲得。
	MovementRatingReward MovementKind = "rating_reward"
	// MovementRatingReceived は自分の写真が評価されたことによる消費。
	MovementRatingReceived MovementKind = "rating_received"
)

// PointMovement は1件のポイント増減指示を表す。
// Deltaが負の場合は減算で、Strictがtrueなら残高不足時に操作全体を失敗させ、
// falseなら残高0を下限として減算する。
type PointMovement struct {
	UserID  ID
	Delta   int
	Kind    MovementKind
	PhotoID *ID
	Strict  bool
}

// IsDebit は減算かどうかを返す。
func (m PointMovement) IsDebit() bool {
	return m.Delta < 0
}

// PointTransaction は適用済みのポイント増減履歴を表す。
type PointTransaction struct {
	ID        int64
	UserID    ID
	Delta     int
	Kind      MovementKind
	PhotoID   *ID
	CreatedAt time.Time
}
