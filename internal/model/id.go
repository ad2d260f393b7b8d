package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID はユーザー・写真を識別する検証済みの識別子。
// HTTP境界でParseIDにより1度だけ生成し、以降は不透明な値として受け渡す。
type ID uuid.UUID

// NilID はゼロ値のID。
var NilID ID

// NewID は新しいランダムなIDを生成する。
func NewID() ID {
	return ID(uuid.New())
}

// ParseID は文字列をIDとして検証・変換する。
// UUID形式でない場合はINVALID_IDのAPIErrorを返す。
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return NilID, NewInvalidIDError(s)
	}
	return ID(u), nil
}

// MustParseID はParseIDの結果を返し、失敗時はpanicする。テスト用。
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String はUUIDの正規表現文字列を返す。
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero はゼロ値かどうかを返す。
func (id ID) IsZero() bool {
	return id == NilID
}

// Value はdriver.Valuerを実装する。
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan はsql.Scannerを実装する。
func (id *ID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return fmt.Errorf("failed to scan id: %w", err)
	}
	*id = ID(u)
	return nil
}

// MarshalText はJSONエンコード時に文字列として出力する。
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText は文字列からIDを復元する。
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
