package eventlog

import (
	"context"
	"sync"
)

// MemoryLogger keeps stage history in process memory.
type MemoryLogger struct {
	mutex   sync.RWMutex
	entries map[string][]*Entry
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{entries: map[string][]*Entry{}}
}

func (l *MemoryLogger) LogStage(ctx context.Context, entry *Entry) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	copied := *entry
	l.entries[entry.SessionID] = append(l.entries[entry.SessionID], &copied)
	return nil
}

func (l *MemoryLogger) StageHistory(ctx context.Context, sessionID string) ([]*Entry, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	history := l.entries[sessionID]
	out := make([]*Entry, len(history))
	for i, entry := range history {
		copied := *entry
		out[i] = &copied
	}
	return out, nil
}

func (l *MemoryLogger) DeleteHistory(ctx context.Context, sessionID string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.entries, sessionID)
	return nil
}
