package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-method/orchestrator/domain"
)

func TestExecuteSwitchOnPausedSessionKeepsStream(t *testing.T) {
	ctx := context.Background()
	svc := newSyncTestService(t)

	sess, err := svc.CreateSession(ctx, domain.PathwayNewIdea, "", "u1")
	require.NoError(t, err)
	_, err = svc.Pause(ctx, sess.SessionID)
	require.NoError(t, err)

	cancelled := false
	svc.registerStream(sess.SessionID, func() { cancelled = true })

	_, err = svc.ExecuteSwitch(ctx, sess.SessionID, domain.PathwayBusinessModel, true, true, domain.TransitionReasonUserChoice)
	require.ErrorIs(t, err, domain.ErrSessionNotActive)

	// The rejected switch must leave the in-flight stream running and must
	// not have taken a pre-switch snapshot.
	assert.False(t, cancelled)
	snaps, err := svc.ListBackups(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = svc.Resume(ctx, sess.SessionID)
	require.NoError(t, err)

	_, err = svc.ExecuteSwitch(ctx, sess.SessionID, domain.PathwayBusinessModel, true, true, domain.TransitionReasonUserChoice)
	require.NoError(t, err)
	assert.True(t, cancelled)

	got, err := svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PathwayBusinessModel, got.Pathway)
}
