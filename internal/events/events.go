// Package events fans out typed recording lifecycle events to advisory
// subscribers (overlay, CLI status, future GUI), throttling high-rate
// spectrum updates without ever blocking the publisher.
package events

import "time"

// NBars is the fixed spectrum envelope width carried on RecordingStatus events.
const NBars = 8

// RecordingState mirrors the recording state machine's externally visible phase.
type RecordingState string

const (
	StateIdle         RecordingState = "idle"
	StateRecording    RecordingState = "recording"
	StateTranscribing RecordingState = "transcribing"
	StateError        RecordingState = "error"
)

// Error describes the kind and message of a one-shot failure event.
type Error struct {
	Kind    string
	Message string
}

// RecordingStatus reports the current recording phase, an optional spectrum
// envelope, and elapsed time. SessionComplete is true exactly once, on the
// Transcribing->Idle transition that followed a successful transcription,
// whether or not output delivery succeeded.
type RecordingStatus struct {
	State           RecordingState
	Spectrum        *[NBars]float32
	SessionComplete bool
	ElapsedMS       int64
	Err             *Error
}

// TranscriptionResult reports one finished inference.
type TranscriptionResult struct {
	Text       string
	DurationS  float64
	ModelLabel string
}

// OsdPosition is the overlay's requested corner.
type OsdPosition string

const (
	OsdTop    OsdPosition = "top"
	OsdBottom OsdPosition = "bottom"
)

// OsdPositionChanged reports a live settings change to the overlay's anchor.
type OsdPositionChanged struct {
	Position OsdPosition
}

// Event is the closed set of payloads the bus carries. Exactly one of the
// Recording/Transcription/Osd fields is non-nil.
type Event struct {
	Recording    *RecordingStatus
	Transcription *TranscriptionResult
	Osd          *OsdPositionChanged
	at           time.Time
}
