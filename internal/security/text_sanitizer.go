package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自己紹介文などの自由入力からマークアップを取り除く。
// 出力はプレーンテキストで、表示時のエスケープはテンプレート側で行う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティを戻したうえで前後の空白と
// 行末の空白を取り除く。改行は保持する。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	text := html.UnescapeString(s.policy.Sanitize(raw))

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
