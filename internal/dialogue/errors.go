package dialogue

import "errors"

var (
	ErrNotBound          = errors.New("realtime session is not bound")
	ErrBusy              = errors.New("a dialogue run is already in progress")
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrStaleBinding      = errors.New("session binding changed")
	ErrNewSequenceFailed = errors.New("could not start a new round")
)
