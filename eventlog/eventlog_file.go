package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileLogger appends stage log entries to one newline-delimited JSON file
// per session.
type FileLogger struct {
	directory string
	mutex     sync.Mutex
}

func NewFileLogger(directory string) *FileLogger {
	return &FileLogger{directory: directory}
}

func (l *FileLogger) sessionLogPath(sessionID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", sessionID))
}

func (l *FileLogger) LogStage(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	path := l.sessionLogPath(entry.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (l *FileLogger) StageHistory(ctx context.Context, sessionID string) ([]*Entry, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := os.ReadFile(l.sessionLogPath(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []*Entry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (l *FileLogger) DeleteHistory(ctx context.Context, sessionID string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	err := os.Remove(l.sessionLogPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
