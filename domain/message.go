package domain

import (
	"encoding/json"
	"time"
)

// CommittedMessage is one entry of the conversation log. Regular messages
// carry speaker content; handoff entries mark the moment one speaker's
// contribution ended and another's began. Entries are ordered by commit time
// and never mutated after their streaming flag clears.
type CommittedMessage struct {
	MessageID string             `json:"message_id"`
	SessionID string             `json:"session_id"`
	Kind      MessageKind        `json:"kind"`
	Role      string             `json:"role"` // user, assistant, system
	Speaker   string             `json:"speaker,omitempty"`
	Content   string             `json:"content"`
	Streaming bool               `json:"streaming,omitempty"`
	Handoff   *HandoffAnnotation `json:"handoff,omitempty"`
	Metadata  json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// HandoffAnnotation is the synthetic record inserted between two speakers'
// segments when a speaker change carries a reason.
type HandoffAnnotation struct {
	FromSpeaker string `json:"from_speaker"`
	ToSpeaker   string `json:"to_speaker"`
	Reason      string `json:"reason"`
}
