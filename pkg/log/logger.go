package log

// Logger receives protocol events. Log is called on the connection's read
// loop and on request goroutines, so implementations must be safe for
// concurrent use and must not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MultiLogger fans events out to several sinks in order.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines sinks, skipping nil ones and flattening nested
// MultiLoggers. It returns nil when no sink remains and the sink itself when
// only one does, so the result can be assigned straight to an optional
// ProtocolLogger field.
func NewMultiLogger(sinks ...Logger) Logger {
	var flat []Logger
	for _, s := range sinks {
		switch s := s.(type) {
		case nil:
		case *MultiLogger:
			flat = append(flat, s.sinks...)
		default:
			flat = append(flat, s)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &MultiLogger{sinks: flat}
}

// Log forwards event to every sink.
func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
