package types

import "time"

const (
	LogFileName = "log.json"
	LogVersion  = "0.1.0"
)

type LogEntry struct {
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RunUrl    *string     `json:"run_url"`
}

// Log is the version specific log stored as log.json. Tools holds the
// reports of external tools keyed by tool name.
type Log struct {
	LogVersion string                `json:"log_version"`
	Entries    []LogEntry            `json:"entries"`
	Tools      map[string][]LogEntry `json:"tools,omitempty"`
}

func NewLog() *Log {
	return &Log{LogVersion: LogVersion, Entries: []LogEntry{}}
}

func NewLogEntry(message string, details interface{}, runUrl string) LogEntry {
	entry := LogEntry{Message: message, Details: details, Timestamp: time.Now().UTC()}
	if runUrl != "" {
		entry.RunUrl = &runUrl
	}
	return entry
}

func (l *Log) FileName() string { return LogFileName }

// Merge appends the entries of update. A log written with a different log
// version replaces the current one.
func (l *Log) Merge(update *Log) error {
	if update == nil {
		return nil
	}
	if update.LogVersion != l.LogVersion {
		*l = *update
		return nil
	}
	l.Entries = append(l.Entries, update.Entries...)
	for tool, entries := range update.Tools {
		if l.Tools == nil {
			l.Tools = make(map[string][]LogEntry)
		}
		l.Tools[tool] = append(l.Tools[tool], entries...)
	}
	return nil
}
