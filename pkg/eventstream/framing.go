package eventstream

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

// MaxLogFrameDataSize is the maximum payload size to include in logs (4 KB).
// Larger payloads are truncated in log events.
const MaxLogFrameDataSize = 4096

// Writer writes eventstream messages to an underlying writer.
type Writer struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex
	buf            []byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewWriter creates a new message writer.
func NewWriter(w io.Writer) *Writer {
	return NewWriterWithMaxSize(w, DefaultMaxMessageSize)
}

// NewWriterWithMaxSize creates a message writer with a custom max size.
func NewWriterWithMaxSize(w io.Writer, maxSize uint32) *Writer {
	return &Writer{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (mw *Writer) SetLogger(logger log.Logger, connID string) {
	mw.logger = logger
	mw.connID = connID
}

// WriteMessage encodes and writes m as a single write.
// Thread-safe: can be called from multiple goroutines.
func (mw *Writer) WriteMessage(m *Message) error {
	if size := m.EncodedSize(); uint32(size) > mw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, mw.maxMessageSize)
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	var err error
	mw.buf, err = m.Append(mw.buf[:0])
	if err != nil {
		return err
	}
	if _, err := mw.w.Write(mw.buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if mw.logger != nil {
		mw.logger.Log(makeFrameEvent(m, len(mw.buf), log.DirectionOut, mw.connID))
	}
	return nil
}

// Reader reads eventstream messages from an underlying reader.
type Reader struct {
	r              io.Reader
	maxMessageSize uint32
	prelude        [PreludeSize]byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewReader creates a new message reader.
func NewReader(r io.Reader) *Reader {
	return NewReaderWithMaxSize(r, DefaultMaxMessageSize)
}

// NewReaderWithMaxSize creates a message reader with a custom max size.
func NewReaderWithMaxSize(r io.Reader, maxSize uint32) *Reader {
	return &Reader{
		r:              r,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (mr *Reader) SetLogger(logger log.Logger, connID string) {
	mr.logger = logger
	mr.connID = connID
}

// ReadMessage reads and decodes one message. The message owns its memory.
// Returns io.EOF if the stream ends cleanly between messages.
func (mr *Reader) ReadMessage() (*Message, error) {
	if _, err := io.ReadFull(mr.r, mr.prelude[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("failed to read prelude: %w", err)
	}

	p, err := DecodePrelude(mr.prelude[:])
	if err != nil {
		return nil, err
	}
	if p.TotalLen > mr.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, p.TotalLen, mr.maxMessageSize)
	}

	buf := make([]byte, p.TotalLen)
	copy(buf, mr.prelude[:])
	if _, err := io.ReadFull(mr.r, buf[PreludeSize:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	m, err := Decode(buf)
	if err != nil {
		return nil, err
	}

	if mr.logger != nil {
		mr.logger.Log(makeFrameEvent(m, len(buf), log.DirectionIn, mr.connID))
	}
	return m, nil
}

// SetMaxMessageSize updates the maximum message size.
func (mr *Reader) SetMaxMessageSize(size uint32) {
	mr.maxMessageSize = size
}

// makeFrameEvent creates a log event for a message.
func makeFrameEvent(m *Message, size int, direction log.Direction, connID string) log.Event {
	data := m.Payload
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	frame := &log.FrameEvent{
		Size:      size,
		Data:      data,
		Truncated: truncated,
	}
	var names []string
	for _, h := range m.Headers {
		v, _ := h.Value.AsInt32()
		switch h.Name {
		case HeaderMessageType:
			frame.MessageType = v
		case HeaderMessageFlags:
			frame.Flags = v
		case HeaderStreamID:
			frame.StreamID = v
		default:
			names = append(names, h.Name)
		}
	}
	frame.Headers = names

	category := log.CategoryMessage
	switch MessageType(frame.MessageType) {
	case MessageConnect, MessageConnectAck:
		category = log.CategoryControl
	case MessageError, MessageProtocolError, MessageInternalError:
		category = log.CategoryError
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerFrame,
		Category:     category,
		Frame:        frame,
	}
}
