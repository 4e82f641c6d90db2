package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bmad-method/orchestrator/session"
	"github.com/bmad-method/orchestrator/store"
)

// RunSync periodically flushes every live machine to the store until ctx is
// cancelled. It runs in its own goroutine; a failed cycle is logged and
// retried on the next tick, never surfaced to foreground operations.
func (s *Service) RunSync(ctx context.Context) {
	interval := s.config.SyncInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush so a clean shutdown loses nothing.
			if err := s.SyncNow(context.Background()); err != nil {
				log.Printf("ERROR: final sync failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil {
				log.Printf("ERROR: periodic sync failed: %v", err)
			}
		}
	}
}

// SyncNow flushes every live machine's snapshot to the store. Sessions that
// fail are skipped, not retried inline; the error reports all of them.
func (s *Service) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	machines := make(map[string]*session.Machine, len(s.machines))
	for id, m := range s.machines {
		machines[id] = m
	}
	s.mu.Unlock()

	var errs []error
	for id, m := range machines {
		sess, state := m.Snapshot()
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		if err := s.store.SaveState(ctx, id, state); err != nil {
			errs = append(errs, fmt.Errorf("state %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Backup flushes a session's current state and records a tagged snapshot of
// it. Returns the snapshot id.
func (s *Service) Backup(ctx context.Context, sessionID, tag string) (string, error) {
	s.mu.Lock()
	m, live := s.machines[sessionID]
	s.mu.Unlock()

	// Flush the live state first so the snapshot captures now, not the
	// last sync tick.
	if live {
		sess, state := m.Snapshot()
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			return "", fmt.Errorf("failed to flush session: %w", err)
		}
		if err := s.store.SaveState(ctx, sessionID, state); err != nil {
			return "", fmt.Errorf("failed to flush state: %w", err)
		}
	}

	return s.store.Backup(ctx, sessionID, tag)
}

// ListBackups lists a session's snapshots, newest first.
func (s *Service) ListBackups(ctx context.Context, sessionID string) ([]store.Snapshot, error) {
	return s.store.ListBackups(ctx, sessionID)
}
