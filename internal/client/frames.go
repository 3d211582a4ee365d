package client

import (
	"bytes"
	"encoding/json"

	"yui/internal/logging"
	"yui/internal/types"
)

type FrameType string

const (
	FrameProgress FrameType = "progress"
	FrameSession  FrameType = "session"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

const (
	framePrefix          = "data: "
	skipPreviewLimit     = 100
	parseErrPreviewLimit = 200
)

// Frame is one decoded unit of a stage stream.
type Frame struct {
	Type    FrameType           `json:"type"`
	Message *types.Message      `json:"message,omitempty"`
	Session *types.SessionPatch `json:"session,omitempty"`
	Result  json.RawMessage     `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// FrameDecoder turns arbitrarily split chunks of a stage stream into frames.
// Only complete lines starting with "data: " are considered; malformed lines
// are logged and skipped.
type FrameDecoder struct {
	buf    []byte
	logger logging.Logger
}

func NewFrameDecoder(logger logging.Logger) *FrameDecoder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FrameDecoder{logger: logger}
}

// Feed appends chunk to the carry-over buffer and returns the frames of every
// line completed by it, in order.
func (d *FrameDecoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	var frames []Frame
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		if frame, ok := d.decodeLine(line); ok {
			frames = append(frames, frame)
		}
		d.buf = d.buf[idx+1:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered reports the number of bytes waiting for a line terminator.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Close discards any trailing partial line and returns how many bytes were dropped.
func (d *FrameDecoder) Close() int {
	dropped := len(d.buf)
	if dropped > 0 {
		d.logger.Debug("stream ended with partial frame", logging.F("bytes", dropped))
	}
	d.buf = nil
	return dropped
}

func (d *FrameDecoder) decodeLine(line []byte) (Frame, bool) {
	if !bytes.HasPrefix(line, []byte(framePrefix)) {
		return Frame{}, false
	}
	payload := bytes.TrimSpace(line[len(framePrefix):])
	if len(payload) == 0 {
		return Frame{}, false
	}
	if payload[0] != '{' && payload[0] != '[' {
		d.logger.Warn("skipping non-json frame", logging.F("preview", logging.Preview(string(payload), skipPreviewLimit)))
		return Frame{}, false
	}
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		d.logger.Error("frame parse failed",
			logging.Err(err),
			logging.F("length", len(line)),
			logging.F("preview", logging.Preview(string(line), parseErrPreviewLimit)),
		)
		return Frame{}, false
	}
	switch frame.Type {
	case FrameProgress:
		if frame.Message == nil {
			d.logger.Warn("progress frame without message")
			return Frame{}, false
		}
	case FrameSession:
		if frame.Session == nil {
			d.logger.Warn("session frame without session")
			return Frame{}, false
		}
	case FrameComplete, FrameError:
	default:
		d.logger.Debug("ignoring frame", logging.F("type", string(frame.Type)))
		return Frame{}, false
	}
	return frame, true
}
