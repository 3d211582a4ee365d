package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"yui/internal/logging"
)

const (
	streamChunkSize   = 32 * 1024
	streamChannelSize = 256
)

// StreamError is the failure reported by an "error" frame.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	if e == nil {
		return ""
	}
	return "stage stream error: " + e.Message
}

// StageStream delivers the frames of one stage execution in arrival order.
// The channel is closed once the body is exhausted, a complete or error frame
// arrives, or Close is called.
type StageStream struct {
	frames chan Frame
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *StageStream) Frames() <-chan Frame {
	return s.frames
}

// Err reports why the stream ended. It is only meaningful after Frames is closed.
func (s *StageStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close aborts the request and waits for the reader to finish.
func (s *StageStream) Close() {
	s.cancel()
	<-s.done
}

func (s *StageStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// StreamStage executes one stage on the server and streams its frames.
func (c *Client) StreamStage(ctx context.Context, sessionID string, req StageRequest) (*StageStream, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}
	logger := c.logger.With(logging.F("session", sessionID), logging.F("stage", string(req.Stage)))

	ctx, cancel := context.WithCancel(ctx)
	path := "/api/realtime/sessions/" + url.PathEscape(sessionID) + "/stage"
	httpReq, err := c.newRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.streamDebug {
		logger.Debug("stage stream open", logging.F("url", httpReq.URL.String()))
	}
	resp, err := c.stream.Do(httpReq)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		cancel()
		if c.streamDebug {
			logger.Debug("stage stream rejected", logging.F("status", resp.StatusCode))
		}
		return nil, decodeAPIError(resp)
	}

	stream := &StageStream{
		frames: make(chan Frame, streamChannelSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.readStage(ctx, stream, resp.Body, logger)
	return stream, nil
}

func (c *Client) readStage(ctx context.Context, stream *StageStream, body io.ReadCloser, logger logging.Logger) {
	defer close(stream.done)
	defer close(stream.frames)
	defer body.Close()

	start := time.Now()
	count := 0
	decoder := NewFrameDecoder(logger)
	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				if c.streamDebug {
					logger.Debug("stage frame", logging.F("type", string(frame.Type)))
				}
				select {
				case stream.frames <- frame:
					count++
				case <-ctx.Done():
					stream.setErr(ctx.Err())
					return
				}
				switch frame.Type {
				case FrameComplete:
					c.logStreamEnd(logger, count, start)
					return
				case FrameError:
					stream.setErr(&StreamError{Message: frame.Error})
					c.logStreamEnd(logger, count, start)
					return
				}
			}
		}
		if readErr != nil {
			decoder.Close()
			if !errors.Is(readErr, io.EOF) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					stream.setErr(ctxErr)
				} else {
					stream.setErr(readErr)
				}
			}
			c.logStreamEnd(logger, count, start)
			return
		}
	}
}

func (c *Client) logStreamEnd(logger logging.Logger, count int, start time.Time) {
	if !c.streamDebug {
		return
	}
	logger.Debug("stage stream close", logging.F("frames", count), logging.F("dur", time.Since(start)))
}
