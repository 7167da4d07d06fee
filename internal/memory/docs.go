// internal/memory/docs.go
//
// Namespaced document storage underneath the memory manager.
// Namespaces:
//   - session:<id>  turn events (event_000000, ...) and the session summary
//   - player:<id>   per-session summaries for a player
//   - global        puzzle statistics and summaries of anonymous sessions
//
// Values are opaque JSON; the manager owns their shape.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by DocStore.Get for a missing key.
var ErrNotFound = errors.New("memory document not found")

// Doc is one stored value.
type Doc struct {
	Namespace string
	Key       string
	Value     json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocStore is a namespaced key/value store.
type DocStore interface {
	// Put inserts or replaces namespace/key. CreatedAt survives replacement.
	Put(ctx context.Context, namespace, key string, value json.RawMessage, now time.Time) error
	Get(ctx context.Context, namespace, key string) (Doc, error)
	// List returns the documents of namespace whose key has prefix, by key.
	List(ctx context.Context, namespace, prefix string) ([]Doc, error)
}

// SessionNamespace is where a session's events and summary live.
func SessionNamespace(sessionID string) string { return "session:" + sessionID }

// PlayerNamespace is where a player's long-term memory lives.
func PlayerNamespace(playerID string) string { return "player:" + playerID }

// GlobalNamespace holds cross-session records.
const GlobalNamespace = "global"

// MemoryDocs is an in-process DocStore.
type MemoryDocs struct {
	mu   sync.RWMutex
	docs map[string]map[string]Doc
}

// NewMemoryDocs returns an empty MemoryDocs.
func NewMemoryDocs() *MemoryDocs {
	return &MemoryDocs{docs: make(map[string]map[string]Doc)}
}

func (m *MemoryDocs) Put(ctx context.Context, namespace, key string, value json.RawMessage, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.docs[namespace]
	if !ok {
		ns = make(map[string]Doc)
		m.docs[namespace] = ns
	}
	created := now
	if old, ok := ns[key]; ok {
		created = old.CreatedAt
	}
	ns[key] = Doc{
		Namespace: namespace,
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		CreatedAt: created,
		UpdatedAt: now,
	}
	return nil
}

func (m *MemoryDocs) Get(ctx context.Context, namespace, key string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[namespace][key]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryDocs) List(ctx context.Context, namespace, prefix string) ([]Doc, error) {
	m.mu.RLock()
	var out []Doc
	for k, d := range m.docs[namespace] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, d)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
