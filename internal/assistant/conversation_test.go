package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFunc func(ctx context.Context, message string) (string, error)

func (f backendFunc) InternalChat(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

func TestSendAppendsBothMessages(t *testing.T) {
	c := NewConversation(backendFunc(func(_ context.Context, m string) (string, error) {
		return "eco: " + m, nil
	}), nil)

	reply, err := c.Send(context.Background(), "  oi  ")
	require.NoError(t, err)
	assert.Equal(t, "eco: oi", reply.Content)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "oi", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.False(t, c.Busy())
}

func TestSendIgnoresBlankInput(t *testing.T) {
	calls := 0
	c := NewConversation(backendFunc(func(context.Context, string) (string, error) {
		calls++
		return "", nil
	}), nil)

	_, err := c.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Zero(t, calls)
	assert.Empty(t, c.Messages())
}

func TestSendKeepsUserMessageOnFailure(t *testing.T) {
	boom := errors.New("server down")
	c := NewConversation(backendFunc(func(context.Context, string) (string, error) {
		return "", boom
	}), nil)

	_, err := c.Send(context.Background(), "quantos leads?")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Err(), boom)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "quantos leads?", msgs[0].Content)
}

func TestSendWhileInFlightIsIgnored(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewConversation(backendFunc(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "primeira")
		done <- err
	}()
	<-started
	assert.True(t, c.Busy())

	_, err := c.Send(context.Background(), "segunda")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first send never returned")
	}
	assert.Len(t, c.Messages(), 2)

	c.Reset()
	assert.Empty(t, c.Messages())
}
