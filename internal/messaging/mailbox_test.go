package messaging

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bdicore/internal/term"
)

func TestMailboxFIFO(t *testing.T) {
	mb := NewMailbox("alice", "bob")

	first, err := mb.Post("alice", "bob", "inform", term.MustParse("on(a, b)"))
	require.NoError(t, err)
	_, err = mb.Post("alice", "bob", "request", term.MustParse("move(a)"))
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err)

	assert.Equal(t, 2, mb.Pending("bob"))
	msg, ok := mb.Receive("bob")
	require.True(t, ok)
	assert.Equal(t, first.ID, msg.ID)
	assert.Equal(t, "message(alice, inform, on(a, b))", msg.Event().String())

	msg, ok = mb.Receive("bob")
	require.True(t, ok)
	assert.Equal(t, "request", msg.Performative)

	_, ok = mb.Receive("bob")
	assert.False(t, ok)
	_, ok = mb.Receive("alice")
	assert.False(t, ok)
}

func TestMailboxRejects(t *testing.T) {
	mb := NewMailbox("bob")

	_, err := mb.Post("alice", "carol", "inform", term.MustParse("x"))
	assert.ErrorIs(t, err, ErrUnknownReceiver)

	_, err = mb.Post("alice", "bob", "inform", term.MustParse("on(X, b)"))
	assert.ErrorIs(t, err, term.ErrUnboundVariable)
	assert.Zero(t, mb.Pending("bob"))

	mb.Register("carol")
	_, err = mb.Post("alice", "carol", "inform", term.MustParse("x"))
	assert.NoError(t, err)
}

func TestMailboxConcurrentPost(t *testing.T) {
	mb := NewMailbox("sink")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = mb.Post("src", "sink", "inform", term.Fn("n", term.Int(i), term.Int(j)))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, mb.Pending("sink"))
}
