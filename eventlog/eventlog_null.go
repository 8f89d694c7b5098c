package eventlog

import "context"

// NullLogger is a no-op implementation.
type NullLogger struct{}

func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) LogStage(ctx context.Context, entry *Entry) error {
	return nil
}

func (l *NullLogger) StageHistory(ctx context.Context, sessionID string) ([]*Entry, error) {
	return nil, nil
}

func (l *NullLogger) DeleteHistory(ctx context.Context, sessionID string) error {
	return nil
}
