package app

import (
	"context"
	"testing"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) Handshake(context.Context, descriptor.Descriptor) (transfer.Metadata, error) {
	return transfer.Metadata{}, nil
}
func (nopTransport) Receive(context.Context, func(float64)) error { return nil }
func (nopTransport) Close() error                                 { return nil }

func newSession(t *testing.T) *transfer.Session {
	t.Helper()
	s, err := transfer.NewSession(nopTransport{})
	require.NoError(t, err)
	return s
}

func TestStateManager_SingleActiveSession(t *testing.T) {
	m := NewStateManager()
	assert.Nil(t, m.Current())

	first := newSession(t)
	require.NoError(t, m.Start(first))
	assert.Same(t, first, m.Current())

	second := newSession(t)
	assert.ErrorIs(t, m.Start(second), ErrSessionActive)

	m.Finish(second)
	assert.Same(t, first, m.Current(), "finishing a stale session must not release the slot")

	m.Finish(first)
	assert.Nil(t, m.Current())
	require.NoError(t, m.Start(second))
}

func TestStateManager_WaitForTransferDone(t *testing.T) {
	m := NewStateManager()

	select {
	case <-m.WaitForTransferDone():
	default:
		t.Fatal("idle manager should report done")
	}

	s := newSession(t)
	require.NoError(t, m.Start(s))
	done := m.WaitForTransferDone()
	select {
	case <-done:
		t.Fatal("done closed while session active")
	default:
	}

	m.Finish(s)
	select {
	case <-done:
	default:
		t.Fatal("done not closed after Finish")
	}
}

func TestStateManager_Dispose(t *testing.T) {
	m := NewStateManager()
	require.NoError(t, m.Dispose())

	s := newSession(t)
	require.NoError(t, m.Start(s))
	require.NoError(t, m.Dispose())

	assert.ErrorIs(t, s.Begin(), transfer.ErrSessionDisposed)
	assert.Same(t, s, m.Current())
}
