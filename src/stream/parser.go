// Package stream turns a server-sent-event completion stream into ordered
// message deltas.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/elee1766/orbital/src/aisdk"
)

const (
	defaultReadSize   = 4 * 1024
	defaultMaxPending = 8 * 1024 * 1024
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// Outcome describes how a stream completed successfully.
type Outcome int

const (
	// OutcomeDone means the [DONE] sentinel was received.
	OutcomeDone Outcome = iota + 1
	// OutcomeEOF means the stream ended without a sentinel.
	OutcomeEOF
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// DeltaFunc receives each non-empty delta in arrival order.
type DeltaFunc func(aisdk.Delta)

// Config configures a Parser.
type Config struct {
	Logger *slog.Logger
	// ReadSize is the size of each read from the underlying stream.
	ReadSize int
	// MaxPending bounds an incomplete JSON payload held while waiting for
	// more bytes. Larger fragments are dropped.
	MaxPending int
}

// Parser is a buffered line assembler for completion streams. A Parser is
// stateless between calls to Parse and safe for concurrent use.
type Parser struct {
	logger     *slog.Logger
	readSize   int
	maxPending int
}

// NewParser creates a Parser.
func NewParser(cfg Config) *Parser {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = defaultReadSize
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	return &Parser{
		logger:     logger.With("component", "stream_parser"),
		readSize:   cfg.ReadSize,
		maxPending: cfg.MaxPending,
	}
}

// Parse reads r until the [DONE] sentinel, end of stream, a read error or
// cancellation of ctx. Deltas are passed to fn as soon as their line is
// complete. A failed read is returned as *ReadError, a provider error
// payload as *ProviderError, and cancellation as ctx.Err().
func (p *Parser) Parse(ctx context.Context, r io.Reader, fn DeltaFunc) (Outcome, error) {
	s := &session{parser: p, emit: fn}
	chunk := make([]byte, p.readSize)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			for {
				i := bytes.IndexByte(s.buf, '\n')
				if i < 0 {
					break
				}
				line := s.buf[:i]
				s.buf = s.buf[i+1:]
				done, err := s.line(line)
				if err != nil {
					return 0, err
				}
				if done {
					return OutcomeDone, nil
				}
			}
			// Compact so the buffer does not grow with the whole stream.
			if len(s.buf) == 0 {
				s.buf = s.buf[:0:0]
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return s.finish()
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p.logger.Debug("stream read failed", "error", readErr, "discarded_bytes", len(s.buf)+len(s.pending))
		return 0, &ReadError{Err: readErr}
	}
}

// session is the per-stream state of Parse.
type session struct {
	parser  *Parser
	emit    DeltaFunc
	buf     []byte
	pending []byte
}

// finish handles the bytes left when the underlying reader reports EOF.
func (s *session) finish() (Outcome, error) {
	if len(bytes.TrimSpace(s.buf)) > 0 {
		done, err := s.line(s.buf)
		if err != nil {
			return 0, err
		}
		if done {
			return OutcomeDone, nil
		}
	}
	if len(s.pending) > 0 {
		s.parser.logger.Debug("dropping incomplete payload at end of stream", "bytes", len(s.pending))
	}
	return OutcomeEOF, nil
}

// line processes one newline-terminated line. It reports whether the
// sentinel was seen.
func (s *session) line(line []byte) (bool, error) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	if !bytes.HasPrefix(line, dataPrefix) {
		// A raw line while a payload is pending is its continuation.
		if len(s.pending) > 0 && len(bytes.TrimSpace(line)) > 0 {
			return false, s.continuePending(line)
		}
		return false, nil
	}

	payload := bytes.TrimLeft(line[len(dataPrefix):], " \t")
	if bytes.Equal(bytes.TrimSpace(payload), doneSentinel) {
		if len(s.pending) > 0 {
			s.parser.logger.Debug("dropping incomplete payload before sentinel", "bytes", len(s.pending))
			s.pending = nil
		}
		return true, nil
	}

	if len(s.pending) > 0 {
		return false, s.continuePending(payload)
	}
	return false, s.payload(payload)
}

// continuePending joins more bytes onto the held fragment and retries it.
// If the joined text can never parse, the fragment is dropped and next is
// tried on its own.
func (s *session) continuePending(next []byte) error {
	joined := make([]byte, 0, len(s.pending)+1+len(next))
	joined = append(joined, s.pending...)
	joined = append(joined, '\n')
	joined = append(joined, next...)
	s.pending = nil

	status, err := s.decode(joined)
	switch status {
	case decodeOK:
		return err
	case decodeIncomplete:
		s.hold(joined)
		return nil
	}

	s.parser.logger.Debug("dropping unparseable payload", "bytes", len(joined))
	return s.payload(next)
}

// payload decodes a single data payload, holding it if it is incomplete.
func (s *session) payload(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	status, err := s.decode(data)
	switch status {
	case decodeIncomplete:
		s.hold(data)
	case decodeInvalid:
		s.parser.logger.Debug("dropping unparseable payload", "payload", string(data))
	}
	return err
}

func (s *session) hold(data []byte) {
	if len(data) > s.parser.maxPending {
		s.parser.logger.Warn("dropping oversized incomplete payload", "bytes", len(data))
		return
	}
	s.pending = append([]byte(nil), data...)
}

type decodeStatus int

const (
	decodeOK decodeStatus = iota
	decodeIncomplete
	decodeInvalid
)

// decode parses one JSON event and emits its delta.
func (s *session) decode(data []byte) (decodeStatus, error) {
	var chunk streamChunk
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&chunk); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return decodeIncomplete, nil
		}
		return decodeInvalid, nil
	}

	if chunk.Error != nil {
		return decodeOK, &ProviderError{Code: chunk.Error.Code, Message: chunk.Error.Message}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
		return decodeOK, nil
	}

	raw := chunk.Choices[0].Delta
	delta := aisdk.Delta{
		Content:   raw.Content,
		Reasoning: raw.Reasoning,
		Images:    normalizeImages(raw.Images, s.parser.logger),
	}
	if !delta.IsEmpty() {
		s.emit(delta)
	}
	return decodeOK, nil
}
