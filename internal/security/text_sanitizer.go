// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーが入力した表示名やアップロード時の元ファイル名から
// HTMLタグや制御文字を取り除き、プレーンテキストとして保存できる形にする。
package security

import (
	"html"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 入力値の最大文字数。
const (
	MaxNameLength     = 100
	MaxFileNameLength = 255
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// SanitizeName は表示名をサニタイズする。
	// HTMLタグと制御文字を除去し、前後の空白を取り除いてMaxNameLength文字に切り詰める。
	SanitizeName(raw string) string

	// SanitizeFileName はクライアントが申告したファイル名をサニタイズする。
	// ディレクトリ部分を取り除き、空になった場合は"upload"を返す。
	SanitizeFileName(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyは全タグを除去するため、結果をアンエスケープしてプレーンテキストに戻す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *textSanitizer) plain(raw string) string {
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// SanitizeName は表示名をサニタイズする。
func (s *textSanitizer) SanitizeName(raw string) string {
	return truncate(s.plain(raw), MaxNameLength)
}

// SanitizeFileName はクライアントが申告したファイル名をサニタイズする。
func (s *textSanitizer) SanitizeFileName(raw string) string {
	name := path.Base(strings.ReplaceAll(s.plain(raw), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return truncate(name, MaxFileNameLength)
}

// truncate はsを最大maxRunes文字に切り詰める。
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
