// Package model はドメインモデルを定義する。
package model

import "time"

// スコアの許容範囲。
const (
	MinScore = 1
	MaxScore = 5
)

// Photo はアップロードされた写真を表す。
type Photo struct {
	ID            ID
	UserID        ID
	FileName      string // UPLOAD_DIR内の保存ファイル名
	FilePath      string // 公開パス（/uploads/<FileName>）
	ThumbnailPath string // サムネイルの公開パス。生成できなかった場合は空
	OriginalName  string
	MimeType      string
	Size          int64
	CreatedAt     time.Time
}

// PhotoWithState は写真と所有者の評価プール状態・評価件数を結合したモデル。
type PhotoWithState struct {
	Photo
	IsEvaluated  bool
	TotalRatings int
}

// Rating は写真に対する1件の評価を表す。
// (PhotoID, RaterID) の組は一意で、追加のみ行い更新・削除はしない。
type Rating struct {
	ID          ID
	PhotoID     ID
	RaterID     ID
	Score       int
	RaterGender Gender
	RaterAge    *int
	CreatedAt   time.Time
}

// ValidScore はスコアが許容範囲内かどうかを返す。
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// CandidateFilter は評価候補の取得条件を表す。
// Gender・AgeMin・AgeMaxは写真所有者の申告プロフィールに対して適用する。
type CandidateFilter struct {
	Gender Gender
	AgeMin *int
	AgeMax *int
	Limit  int
}

// Candidate は評価候補として返す写真の最小情報。
type Candidate struct {
	ID       ID
	FilePath string
}
