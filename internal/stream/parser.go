// Package stream decodes the event stream produced by the chat endpoint. The
// stream multiplexes several event kinds over one HTTP response body using
// line-oriented `event:`/`data:` framing, and chunks arrive at arbitrary byte
// boundaries, so the parser reassembles full lines before acting on them.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Handler carries the callbacks invoked as events are decoded. Nil callbacks
// are skipped. Callbacks run synchronously on the goroutine driving Parse, in
// the exact order their data lines appear in the stream.
type Handler struct {
	OnStatus       func(message string)
	OnRequirements func(requirements []string, results []models.ComplianceResult)
	OnToken        func(token string)
	OnDone         func()
	OnError        func(message string)
}

const readBufferSize = 4096

// Parse consumes r until it is exhausted, dispatching decoded events to h. It
// returns nil at end of stream whether or not a done or error event was seen;
// callers must treat stream end without an explicit done as an aborted turn.
// Malformed data payloads and unrecognized event names are logged and skipped,
// never fatal. A non-EOF read error is returned wrapped.
func Parse(r io.Reader, h Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	// carry holds bytes of the last not-yet-terminated line across reads.
	// Splitting on raw bytes keeps multi-byte UTF-8 sequences that straddle a
	// chunk boundary intact; no text is decoded until its line is complete.
	var carry []byte
	buf := make([]byte, readBufferSize)
	event := ""

	for {
		n, err := r.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			for {
				i := bytes.IndexByte(carry, '\n')
				if i < 0 {
					break
				}
				event = processLine(carry[:i], event, h, logger)
				carry = carry[i+1:]
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// End of stream terminates the final line.
				if len(carry) > 0 {
					processLine(carry, event, h, logger)
				}
				return nil
			}
			return fmt.Errorf("error reading stream: %w", err)
		}
	}
}

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// processLine routes one complete line and returns the current event name to
// carry into the next line.
func processLine(line []byte, event string, h Handler, logger *slog.Logger) string {
	line = bytes.TrimSuffix(line, []byte("\r"))

	switch {
	case len(bytes.TrimSpace(line)) == 0:
		// Blank lines separate events; nothing to do.
		return event
	case bytes.HasPrefix(line, []byte(eventPrefix)):
		return string(bytes.TrimSpace(line[len(eventPrefix):]))
	case bytes.HasPrefix(line, []byte(dataPrefix)):
		dispatch(bytes.TrimSpace(line[len(dataPrefix):]), event, h, logger)
		return event
	default:
		logger.Debug("Skipping unrecognized stream line", slog.String("line", string(line)))
		return event
	}
}

// dispatch decodes one data payload and invokes the callback matching the
// current event name. Empty payloads are ignored. Payloads that fail to decode
// are logged and dropped so a single bad line never aborts the stream.
func dispatch(data []byte, event string, h Handler, logger *slog.Logger) {
	if len(data) == 0 {
		return
	}

	switch event {
	case models.EventStatus:
		var ev models.StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logMalformed(logger, event, data, err)
			return
		}
		if h.OnStatus != nil {
			h.OnStatus(ev.Message)
		}
	case models.EventRequirements:
		var ev models.RequirementsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logMalformed(logger, event, data, err)
			return
		}
		if h.OnRequirements != nil {
			h.OnRequirements(ev.Requirements, ev.ComplianceResults)
		}
	case models.EventToken:
		var ev models.TokenEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logMalformed(logger, event, data, err)
			return
		}
		if h.OnToken != nil {
			h.OnToken(ev.Token)
		}
	case models.EventDone:
		// The done payload carries no information worth decoding, but it must
		// still be well-formed.
		if !json.Valid(data) {
			logMalformed(logger, event, data, errors.New("invalid json"))
			return
		}
		if h.OnDone != nil {
			h.OnDone()
		}
	case models.EventError:
		var ev models.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logMalformed(logger, event, data, err)
			return
		}
		if h.OnError != nil {
			h.OnError(ev.Error)
		}
	default:
		// Unknown event names are tolerated for forward compatibility: the
		// payload is validated, then dropped.
		if !json.Valid(data) {
			logMalformed(logger, event, data, errors.New("invalid json"))
			return
		}
		logger.Debug("Dropping event with unrecognized name", slog.String("event", event))
	}
}

func logMalformed(logger *slog.Logger, event string, data []byte, err error) {
	logger.Warn("Skipping malformed data payload",
		slog.String("event", event),
		slog.String("data", string(data)),
		slog.String("err", err.Error()))
}
