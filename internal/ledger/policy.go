// Package ledger はポイント台帳のルール（いつ・誰に・何ポイント増減するか）を提供する。
// 増減の適用はリポジトリ層が単一トランザクション内の条件付き更新で行う。
package ledger

import (
	"fmt"

	"github.com/hitoshi/photorate/internal/config"
	"github.com/hitoshi/photorate/internal/model"
)

// Policy はポイントの付与・消費量を保持する。
type Policy struct {
	StartingPoints int
	UploadCost     int
	PoolCost       int
	RatingReward   int
	// ChargeUpload がfalseの場合、アップロードは無料になる。
	ChargeUpload bool
	// OwnerDebitOnRating がtrueの場合、評価を受けた写真の所有者からRatingReward分を減算する。
	// この減算は残高0を下限とし、評価自体を失敗させることはない。
	OwnerDebitOnRating bool
}

// DefaultPolicy は既定のポリシーを返す。
func DefaultPolicy() Policy {
	return Policy{
		StartingPoints: 10,
		UploadCost:     1,
		PoolCost:       1,
		RatingReward:   1,
		ChargeUpload:   true,
	}
}

// PolicyFromConfig は設定からPolicyを生成する。
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		StartingPoints:     cfg.StartingPoints,
		UploadCost:         cfg.UploadCost,
		PoolCost:           cfg.PoolCost,
		RatingReward:       cfg.RatingReward,
		ChargeUpload:       cfg.ChargeUpload,
		OwnerDebitOnRating: cfg.OwnerDebitOnRating,
	}
}

// Validate はポリシーの値を検証する。
func (p Policy) Validate() error {
	amounts := map[string]int{
		"StartingPoints": p.StartingPoints,
		"UploadCost":     p.UploadCost,
		"PoolCost":       p.PoolCost,
		"RatingReward":   p.RatingReward,
	}
	for name, v := range amounts {
		if v < 0 {
			return fmt.Errorf("ledger policy %s must not be negative: %d", name, v)
		}
	}
	return nil
}

// SignupGrant は登録時の初期付与を返す。
func (p Policy) SignupGrant(userID model.ID) []model.PointMovement {
	if p.StartingPoints == 0 {
		return nil
	}
	return []model.PointMovement{{
		UserID: userID,
		Delta:  p.StartingPoints,
		Kind:   model.MovementSignup,
	}}
}

// UploadCharge はアップロード時の消費を返す。残高不足ならアップロード全体を失敗させる。
func (p Policy) UploadCharge(userID, photoID model.ID) []model.PointMovement {
	if !p.ChargeUpload || p.UploadCost == 0 {
		return nil
	}
	return []model.PointMovement{{
		UserID:  userID,
		Delta:   -p.UploadCost,
		Kind:    model.MovementUpload,
		PhotoID: &photoID,
		Strict:  true,
	}}
}

// CanAffordUpload はbalanceでアップロードできるかどうかを返す。
// 最終的な判定はUploadChargeの適用時に行われる。
func (p Policy) CanAffordUpload(balance int) bool {
	if !p.ChargeUpload {
		return true
	}
	return balance >= p.UploadCost
}

// PoolCharge は評価プール追加時の消費を返す。
func (p Policy) PoolCharge(ownerID, photoID model.ID) []model.PointMovement {
	if p.PoolCost == 0 {
		return nil
	}
	return []model.PointMovement{{
		UserID:  ownerID,
		Delta:   -p.PoolCost,
		Kind:    model.MovementPoolAdd,
		PhotoID: &photoID,
		Strict:  true,
	}}
}

// RatingMovements は評価成立時の増減を返す。
// 評価者にRatingRewardを付与し、OwnerDebitOnRatingが有効なら所有者から下限付きで減算する。
func (p Policy) RatingMovements(raterID, ownerID, photoID model.ID) []model.PointMovement {
	if p.RatingReward == 0 {
		return nil
	}
	movements := []model.PointMovement{{
		UserID:  raterID,
		Delta:   p.RatingReward,
		Kind:    model.MovementRatingReward,
		PhotoID: &photoID,
	}}
	if p.OwnerDebitOnRating {
		movements = append(movements, model.PointMovement{
			UserID:  ownerID,
			Delta:   -p.RatingReward,
			Kind:    model.MovementRatingReceived,
			PhotoID: &photoID,
		})
	}
	return movements
}
