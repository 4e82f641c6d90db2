package domain

// SessionStatus represents the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// TransitionReason explains why a pathway transition happened.
type TransitionReason string

const (
	TransitionReasonUserChoice     TransitionReason = "user_choice"
	TransitionReasonRecommendation TransitionReason = "recommendation"
	TransitionReasonForced         TransitionReason = "forced"
)

// RiskLevel classifies the impact of a pathway switch.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MessageKind distinguishes committed messages from handoff annotations in
// the conversation log.
type MessageKind string

const (
	MessageKindMessage MessageKind = "message"
	MessageKindHandoff MessageKind = "handoff"
)

// StreamEventType is the discriminator of wire-level stream events.
type StreamEventType string

const (
	StreamEventMetadata      StreamEventType = "metadata"
	StreamEventSpeakerChange StreamEventType = "speaker_change"
	StreamEventContent       StreamEventType = "content"
	StreamEventComplete      StreamEventType = "complete"
	StreamEventError         StreamEventType = "error"
)
