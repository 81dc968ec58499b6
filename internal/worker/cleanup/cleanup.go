// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 削除後のセッションIDは解決時に匿名扱いとなるため、ゲートは再ログインへ誘導する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
	// Grace は期限切れから削除までの猶予。ゼロなら即時削除。
	Grace time.Duration
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は期限切れのセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d seconds", int64(j.Grace/time.Second))

	query := `DELETE FROM sessions WHERE expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.String("grace", j.Grace.String()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.String("grace", j.Grace.String()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// RunEvery はinterval毎にRunを実行し、ctxがキャンセルされるまでブロックする。
// 起動直後に1回実行する。個々の実行失敗はログに残してループを継続する。
func (j *SessionCleanupJob) RunEvery(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
