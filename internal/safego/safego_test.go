package safego

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is written by the background goroutine and read by the test
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *lockedBuffer {
	t.Helper()
	prev := slog.Default()
	buf := &lockedBuffer{}
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestGo_AuditWriteRunsOffCaller(t *testing.T) {
	logs := captureLogs(t)
	written := make(chan string, 1)
	release := make(chan struct{})

	action := "training.approved"
	Go("audit-record", func() {
		<-release
		written <- action
	})
	// Go returns before the task is allowed to run
	close(release)

	select {
	case got := <-written:
		assert.Equal(t, "training.approved", got)
	case <-time.After(2 * time.Second):
		t.Fatal("audit task never ran")
	}
	assert.Empty(t, logs.String())
}

func TestGo_PanicIsLoggedWithTaskName(t *testing.T) {
	logs := captureLogs(t)

	Go("audit-record", func() {
		panic("audit store unavailable")
	})

	require.Eventually(t, func() bool { return logs.String() != "" }, 2*time.Second, 10*time.Millisecond)

	var rec map[string]interface{}
	line, _, _ := strings.Cut(logs.String(), "\n")
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "recovered panic in background goroutine", rec["msg"])
	assert.Equal(t, "audit-record", rec["task"])
	assert.Equal(t, "audit store unavailable", rec["panic"])
	assert.Contains(t, rec["stack"], "safego")
}

func TestGo_LaterTasksRunAfterPanic(t *testing.T) {
	captureLogs(t)
	ran := make(chan string, 2)

	Go("rate-limiter-cleanup", func() {
		ran <- "cleanup"
		panic("map corrupted")
	})
	Go("db-stats-collector", func() {
		ran <- "collector"
	})

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case name := <-ran:
			seen[name] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("tasks run so far: %v", seen)
		}
	}
}
