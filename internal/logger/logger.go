// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// levelがnilの場合はINFOレベルで出力する。
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	if level == nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, level slog.Leveler) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, level))
}

// ParseLevel はLOG_LEVEL環境変数の値をslog.Levelに変換する。
// 未知の値はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
