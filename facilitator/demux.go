package facilitator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bmad-method/orchestrator/domain"
)

// Update is what one applied event produced: an incremental content delta
// and/or finalized log entries. The caller threads the demux state forward;
// nothing here reaches into shared mutable cells.
type Update struct {
	MessageID string
	Delta     string
	Commits   []domain.CommittedMessage
	Done      bool
}

// Demux reduces the ordered event stream of one facilitator response to a
// sequence of committed messages, attributing each to one speaker and
// inserting handoff annotations strictly between speaker segments.
//
// State carried across the loop: the current speaker, the content
// accumulated for that speaker, and the active message id (regenerated per
// speaker). Message upserts are O(1) through an id index; finalize is
// idempotent because both a complete event and a late speaker_change may
// attempt it.
type Demux struct {
	sessionID string

	currentSpeaker  string
	accumulated     strings.Builder
	activeMessageID string

	messages  []domain.CommittedMessage
	index     map[string]int
	finalized map[string]bool

	boardState  []byte
	limitStatus []byte
	done        bool

	newID func() string
	now   func() time.Time
}

// NewDemux creates a demultiplexer for one response stream of one session.
// Instances are exclusive to their session and not safe for concurrent use.
func NewDemux(sessionID string) *Demux {
	return &Demux{
		sessionID: sessionID,
		index:     make(map[string]int),
		finalized: make(map[string]bool),
		newID:     func() string { return "msg_" + uuid.New().String()[:8] },
		now:       time.Now,
	}
}

// Apply consumes one wire event and returns the resulting update. An error
// event aborts the stream: the un-finalized message is discarded and a
// retryable StreamError is returned.
func (d *Demux) Apply(ev *StreamEvent) (Update, error) {
	switch ev.Type {
	case domain.StreamEventMetadata:
		if ev.Metadata != nil && len(ev.Metadata.BoardState) > 0 {
			d.boardState = ev.Metadata.BoardState
		}
		return Update{}, nil

	case domain.StreamEventSpeakerChange:
		return d.applySpeakerChange(ev), nil

	case domain.StreamEventContent:
		return d.applyContent(ev), nil

	case domain.StreamEventComplete:
		update := Update{Done: true}
		update.Commits = d.finalize(d.activeMessageID)
		if len(ev.LimitStatus) > 0 {
			d.limitStatus = ev.LimitStatus
		}
		if ev.AdditionalData != nil && len(ev.AdditionalData.BoardState) > 0 {
			d.boardState = ev.AdditionalData.BoardState
		}
		d.done = true
		return update, nil

	case domain.StreamEventError:
		d.discardActive()
		return Update{}, &domain.StreamError{
			Code:      "stream_error",
			Message:   ev.Error,
			Retryable: true,
		}

	default:
		// Unknown event types are tolerated the same way malformed lines are.
		return Update{}, nil
	}
}

func (d *Demux) applySpeakerChange(ev *StreamEvent) Update {
	var newSpeaker, reason string
	if ev.Metadata != nil {
		newSpeaker = ev.Metadata.Speaker
		reason = ev.Metadata.HandoffReason
	}
	if newSpeaker == d.currentSpeaker {
		if d.done {
			// Late duplicate after completion. Finalize is idempotent, so
			// this never produces a second committed message.
			return Update{Commits: d.finalize(d.activeMessageID)}
		}
		// Mid-stream duplicate for the speaker already active. Ignore it so
		// content that follows keeps accumulating into the open message.
		return Update{}
	}

	update := Update{}
	if d.accumulated.Len() > 0 {
		update.Commits = append(update.Commits, d.finalize(d.activeMessageID)...)
	}
	if d.currentSpeaker != "" && reason != "" {
		update.Commits = append(update.Commits, d.commitHandoff(d.currentSpeaker, newSpeaker, reason))
	}

	d.accumulated.Reset()
	d.activeMessageID = d.newID()
	d.currentSpeaker = newSpeaker
	return update
}

func (d *Demux) applyContent(ev *StreamEvent) Update {
	if d.done {
		return Update{}
	}
	// First-content fallback: a stream that never sent speaker_change still
	// attributes content via the event's own metadata.
	if d.currentSpeaker == "" && ev.Metadata != nil && ev.Metadata.Speaker != "" {
		d.currentSpeaker = ev.Metadata.Speaker
	}
	if d.activeMessageID == "" {
		d.activeMessageID = d.newID()
	}

	d.accumulated.WriteString(ev.Content)

	if i, ok := d.index[d.activeMessageID]; ok {
		d.messages[i].Content = d.accumulated.String()
	} else {
		d.index[d.activeMessageID] = len(d.messages)
		d.messages = append(d.messages, domain.CommittedMessage{
			MessageID: d.activeMessageID,
			SessionID: d.sessionID,
			Kind:      domain.MessageKindMessage,
			Role:      "assistant",
			Speaker:   d.currentSpeaker,
			Content:   d.accumulated.String(),
			Streaming: true,
			CreatedAt: d.now(),
		})
	}

	return Update{MessageID: d.activeMessageID, Delta: ev.Content}
}

// finalize persists the message content and clears its streaming flag.
// Idempotent: finalizing an unknown or already-finalized id is a no-op.
func (d *Demux) finalize(id string) []domain.CommittedMessage {
	if id == "" || d.finalized[id] {
		return nil
	}
	i, ok := d.index[id]
	if !ok {
		return nil
	}
	d.messages[i].Content = d.accumulated.String()
	d.messages[i].Streaming = false
	d.finalized[id] = true
	return []domain.CommittedMessage{d.messages[i]}
}

func (d *Demux) commitHandoff(from, to, reason string) domain.CommittedMessage {
	msg := domain.CommittedMessage{
		MessageID: d.newID(),
		SessionID: d.sessionID,
		Kind:      domain.MessageKindHandoff,
		Role:      "system",
		CreatedAt: d.now(),
		Handoff: &domain.HandoffAnnotation{
			FromSpeaker: from,
			ToSpeaker:   to,
			Reason:      reason,
		},
	}
	d.index[msg.MessageID] = len(d.messages)
	d.messages = append(d.messages, msg)
	d.finalized[msg.MessageID] = true
	return msg
}

// discardActive drops the un-finalized in-flight message, if any. Used when
// a stream aborts so partial content is never committed.
func (d *Demux) discardActive() {
	id := d.activeMessageID
	if id == "" || d.finalized[id] {
		return
	}
	if i, ok := d.index[id]; ok {
		d.messages = append(d.messages[:i], d.messages[i+1:]...)
		delete(d.index, id)
		for j := i; j < len(d.messages); j++ {
			d.index[d.messages[j].MessageID] = j
		}
	}
	d.accumulated.Reset()
	d.activeMessageID = ""
}

// Abort discards any in-flight content, e.g. on transport failure or
// cancellation mid-stream.
func (d *Demux) Abort() {
	d.discardActive()
}

// Messages returns a copy of the log in commit order.
func (d *Demux) Messages() []domain.CommittedMessage {
	out := make([]domain.CommittedMessage, len(d.messages))
	copy(out, d.messages)
	return out
}

// CurrentSpeaker returns the speaker the demux currently attributes content to.
func (d *Demux) CurrentSpeaker() string { return d.currentSpeaker }

// BoardState returns the board-state side channel, if the stream carried one.
func (d *Demux) BoardState() []byte { return d.boardState }

// LimitStatus returns the limit-status payload of the complete event, if any.
func (d *Demux) LimitStatus() []byte { return d.limitStatus }

// Done reports whether a complete event was applied.
func (d *Demux) Done() bool { return d.done }
