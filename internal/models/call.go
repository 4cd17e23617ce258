package models

import (
	"time"

	"github.com/google/uuid"
)

type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// Valid reports whether t is one of the known call types.
func (t CallType) Valid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

type CallStatus string

const (
	CallStatusOngoing CallStatus = "ongoing"
	CallStatusEnded   CallStatus = "ended"
)

// CallRole distinguishes the participant who started the call from
// everyone who joined it.
type CallRole string

const (
	CallRoleHost        CallRole = "host"
	CallRoleParticipant CallRole = "participant"
)

// Call is the metadata record of a voice/video session. At most one
// ongoing call exists per channel; the call ends when its last active
// participant leaves. Artifact URLs are filled in after the fact by the
// recording pipeline and stay nil when a best-effort step fails.
type Call struct {
	ID              uuid.UUID  `json:"id"`
	ChannelID       uuid.UUID  `json:"channel_id"`
	InitiatorID     uuid.UUID  `json:"initiator_id"`
	Type            CallType   `json:"type"`
	Status          CallStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	RecordingURL    *string    `json:"recording_url,omitempty"`
	TranscriptURL   *string    `json:"transcript_url,omitempty"`
	SummaryURL      *string    `json:"summary_url,omitempty"`
}

// CallParticipant is one user's attendance in a call. A user may have
// several historical rows (join, leave, rejoin) but at most one with
// LeftAt unset.
type CallParticipant struct {
	ID           int64      `json:"id"`
	CallID       uuid.UUID  `json:"call_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Role         CallRole   `json:"role"`
	AudioEnabled bool       `json:"audio_enabled"`
	VideoEnabled bool       `json:"video_enabled"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
}

// Active reports whether the participant is currently in the call.
func (p *CallParticipant) Active() bool {
	return p.LeftAt == nil
}
