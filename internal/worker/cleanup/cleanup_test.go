package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// logHasField はJSONログのいずれかの行に指定フィールドと値が含まれるかを返す。
func logHasField(buf *bytes.Buffer, key string, want interface{}) bool {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok && (want == nil || v == want) {
			return true
		}
	}
	return false
}

func TestSessionCleanupJob_Run_ExecutesDeleteQuery(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM sessions") {
		t.Errorf("クエリに 'DELETE FROM sessions' が含まれていない: %s", mock.query)
	}
	if !strings.Contains(mock.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", mock.query)
	}
}

func TestSessionCleanupJob_Run_GraceInterval(t *testing.T) {
	tests := []struct {
		name  string
		grace time.Duration
		want  string
	}{
		{"default", 0, "0 seconds"},
		{"one hour", time.Hour, "3600 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mock := &mockExecutor{result: &fakeResult{}}
			job := NewSessionCleanupJob(mock, newTestLogger(&buf))
			job.Grace = tt.grace

			_ = job.Run(context.Background())

			if len(mock.args) != 1 {
				t.Fatalf("args = %v, want 1 arg", mock.args)
			}
			if got, _ := mock.args[0].(string); got != tt.want {
				t.Errorf("interval引数 = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 42}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	_ = job.Run(context.Background())

	if !logHasField(&buf, "deleted_count", float64(42)) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if !logHasField(&buf, "duration_ms", nil) {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestSessionCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestSessionCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
	if !logHasField(&buf, "deleted_count", float64(0)) {
		t.Errorf("0件削除時にもログに deleted_count=0 が記録されるべき。ログ出力: %s", buf.String())
	}
}

func TestSessionCleanupJob_RunEvery_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.RunEvery(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(time.Second)
	for mock.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want >= 2", mock.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not return after cancel")
	}
}
