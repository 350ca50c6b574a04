package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/livequery/internal/ir"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingNotifier collects published topics.
type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *recordingNotifier) Notify(topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
}

func (n *recordingNotifier) Topics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

// seedPosts writes posts with ids 1..n and rank = n+1-id, so rank order
// is the reverse of id order.
func seedPosts(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := s.Put(context.Background(), "posts", ir.NewIRObject(
			ir.O("id", ir.IRInt(int64(i))),
			ir.O("title", ir.IRString(fmt.Sprintf("post %d", i))),
			ir.O("rank", ir.IRInt(int64(n+1-i))),
			ir.O("open", ir.IRBool(i%2 == 1)),
		))
		if err != nil {
			t.Fatalf("seed post %d: %v", i, err)
		}
	}
}

func ids(recs []ir.Record) []string {
	return ir.IDs(recs, []string{"id"})
}
