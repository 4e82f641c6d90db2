// Package store defines the persistence interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/bmad-method/orchestrator/domain"
)

// Store is the persistence collaborator. Save is last-write-wins; Load
// returns the most recent successful Save. The core never assumes a
// particular storage engine beyond that contract.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error

	// Universal session state operations
	SaveState(ctx context.Context, sessionID string, state *domain.UniversalSessionState) error
	LoadState(ctx context.Context, sessionID string) (*domain.UniversalSessionState, error)

	// Snapshot operations
	Backup(ctx context.Context, sessionID, tag string) (string, error)
	ListBackups(ctx context.Context, sessionID string) ([]Snapshot, error)

	// Conversation log operations
	SaveMessage(ctx context.Context, message *domain.CommittedMessage) error
	GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.CommittedMessage, error)

	// Lifecycle
	Close() error
}

// Snapshot describes one on-demand backup of a session's universal state.
type Snapshot struct {
	SnapshotID string    `json:"snapshot_id"`
	SessionID  string    `json:"session_id"`
	Tag        string    `json:"tag"`
	CreatedAt  time.Time `json:"created_at"`
}
