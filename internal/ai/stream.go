package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const maxStreamLine = 2 << 20

// ErrStreamFailed is reported when the engine sends an error object mid-stream.
var ErrStreamFailed = errors.New("generation stream failed")

type streamLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Stream reads newline-delimited JSON objects from a generate response and
// yields their incremental "response" fragments. Lines that are not valid JSON
// are logged and skipped. The stream ends when the transport closes.
type Stream struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	maxLine  int
	log      *zap.Logger
	fragment string
	skipped  int
	err      error
}

func newStream(body io.ReadCloser, log *zap.Logger) *Stream {
	return &Stream{
		body:    body,
		reader:  bufio.NewReaderSize(body, 64*1024),
		maxLine: maxStreamLine,
		log:     log,
	}
}

// NewStream wraps an NDJSON body. Exposed for engines reached through other transports.
func NewStream(body io.ReadCloser, log *zap.Logger) *Stream {
	if log == nil {
		log = zap.NewNop()
	}
	return newStream(body, log)
}

// Next advances to the next non-empty fragment. It returns false at end of
// stream or on error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		raw, tooLong, readErr := s.readLine()
		if tooLong {
			s.skipped++
			s.log.Warn("skip oversized stream line", zap.Int("limit", s.maxLine))
		} else if line := bytes.TrimSpace(raw); len(line) > 0 {
			var parsed streamLine
			if err := json.Unmarshal(line, &parsed); err != nil {
				s.skipped++
				s.log.Warn("skip malformed stream line", zap.ByteString("line", line), zap.Error(err))
			} else if parsed.Error != "" {
				s.err = fmt.Errorf("%w: %s", ErrStreamFailed, parsed.Error)
				return false
			} else if parsed.Response != "" {
				s.fragment = parsed.Response
				s.log.Debug("stream fragment", zap.String("fragment", parsed.Response))
				return true
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				s.err = fmt.Errorf("read generate stream failed: %w", readErr)
			}
			return false
		}
	}
}

// readLine returns the next line. Lines longer than maxLine are drained and
// reported as tooLong without being buffered.
func (s *Stream) readLine() (line []byte, tooLong bool, err error) {
	for {
		chunk, readErr := s.reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > s.maxLine {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, readErr
	}
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() string {
	return s.fragment
}

// Skipped reports how many malformed or oversized lines were dropped so far.
func (s *Stream) Skipped() int {
	return s.skipped
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	return s.body.Close()
}
