package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// levelにslog.LevelVarを渡すと、生成後にレベルを切り替えられる。
// levelがnilの場合はInfoとする。
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	if level == nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, level)
	slog.SetDefault(logger)
	return logger
}

// LevelFor は設定からログレベルを決める。
// 詳細ログ有効時または開発モードではDebug、それ以外はInfo。
func LevelFor(verbose, development bool) slog.Level {
	if verbose || development {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
