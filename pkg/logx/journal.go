package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
)

type journalSender interface {
	Enabled() bool
	Send(msg string, pri journal.Priority, vars map[string]string) error
}

type systemJournal struct{}

func (systemJournal) Enabled() bool { return journal.Enabled() }
func (systemJournal) Send(msg string, pri journal.Priority, vars map[string]string) error {
	return journal.Send(msg, pri, vars)
}

// ---- Journal writer (zerolog sink) ----

type journalWriter struct{ svc *Service }

func (w *journalWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *journalWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	if s == nil {
		return len(p), nil
	}

	s.mu.Lock()
	sender := s.journal
	lim := s.limiter
	min := s.minLevel
	s.mu.Unlock()

	if sender == nil || lim == nil || level < min {
		return len(p), nil
	}
	if !lim.Allow() {
		return len(p), nil
	}

	msg, vars := decodeJournalEntry(p)
	if msg == "" {
		return len(p), nil
	}
	// Journal failures must never break the other sinks.
	_ = sender.Send(msg, journalPriority(level), vars)
	return len(p), nil
}

func journalPriority(l zerolog.Level) journal.Priority {
	switch {
	case l >= zerolog.FatalLevel:
		return journal.PriCrit
	case l >= zerolog.ErrorLevel:
		return journal.PriErr
	case l >= zerolog.WarnLevel:
		return journal.PriWarning
	case l >= zerolog.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// decodeJournalEntry turns a zerolog JSON line into a message and journal
// fields. Field names are upper-cased; journald rejects lowercase keys.
func decodeJournalEntry(p []byte) (string, map[string]string) {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return strings.TrimSpace(string(p)), nil
	}

	msg, _ := m[zerolog.MessageFieldName].(string)
	vars := make(map[string]string, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case zerolog.MessageFieldName, zerolog.TimestampFieldName, zerolog.LevelFieldName:
			continue
		}
		vars[journalKey(k)] = fmt.Sprint(m[k])
	}
	return msg, vars
}

func journalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(k) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := strings.TrimLeft(b.String(), "_")
	if s == "" {
		return "FIELD"
	}
	return s
}
