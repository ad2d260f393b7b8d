package repository

import (
	"errors"

	"github.com/lib/pq"
)

// リポジトリ層が返す判定可能なエラー。サービス層でAPIErrorに変換する。
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrAlreadyRated       = errors.New("photo already rated by user")
	ErrUserNotFound       = errors.New("user not found")
)

// PostgreSQLのエラーコード。
const pqUniqueViolation = "23505"

// isUniqueViolation は一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
