package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	reply func(prompt string) (string, error)
	calls int32
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.reply(prompt)
}

type blockingCompleter struct {
	release chan struct{}
	reply   string
	err     error
	calls   int32
}

func (b *blockingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	return b.reply, b.err
}

func TestSubmitSuccess(t *testing.T) {
	sess := New(&scriptedCompleter{reply: func(string) (string, error) {
		return "Ohm's Law states V = IR.", nil
	}})

	done, ok := sess.Submit(context.Background(), "What is Ohm's Law?")
	require.True(t, ok)
	<-done

	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "What is Ohm's Law?"}, messages[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "Ohm's Law states V = IR."}, messages[1])
	assert.Equal(t, StateIdle, sess.State())
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	completer := &scriptedCompleter{reply: func(string) (string, error) { return "hi", nil }}
	sess := New(completer)

	for _, text := range []string{"", "   ", "\t\n"} {
		done, ok := sess.Submit(context.Background(), text)
		assert.False(t, ok)
		assert.Nil(t, done)
	}

	assert.Equal(t, 0, sess.Len())
	assert.Equal(t, StateIdle, sess.State())
	assert.Equal(t, int32(0), atomic.LoadInt32(&completer.calls))
}

func TestSubmitSingleFlight(t *testing.T) {
	completer := &blockingCompleter{release: make(chan struct{}), reply: "first answer"}
	sess := New(completer)

	done, ok := sess.Submit(context.Background(), "first")
	require.True(t, ok)
	assert.Equal(t, StatePending, sess.State())

	// A second submission while pending is dropped, not buffered.
	second, ok := sess.Submit(context.Background(), "second")
	assert.False(t, ok)
	assert.Nil(t, second)

	close(completer.release)
	<-done

	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "first answer", messages[1].Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&completer.calls))
	assert.Equal(t, StateIdle, sess.State())
}

func TestSubmitFailureAppendsApology(t *testing.T) {
	sess := New(&scriptedCompleter{reply: func(string) (string, error) {
		return "", errors.New("gateway error [408]: Request timed out")
	}})

	done, ok := sess.Submit(context.Background(), "hello")
	require.True(t, ok)
	<-done

	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, Apology, messages[1].Content)

	// The session recovers to Idle and accepts the next submission.
	assert.Equal(t, StateIdle, sess.State())
	done, ok = sess.Submit(context.Background(), "again")
	require.True(t, ok)
	<-done
	assert.Equal(t, 4, sess.Len())
}

func TestTranscriptOrdering(t *testing.T) {
	sess := New(&scriptedCompleter{reply: func(prompt string) (string, error) {
		return "echo: " + prompt, nil
	}})

	const n = 5
	for i := 0; i < n; i++ {
		done, ok := sess.Submit(context.Background(), fmt.Sprintf("question %d", i))
		require.True(t, ok)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("submission did not settle")
		}
	}

	messages := sess.Messages()
	require.Len(t, messages, 2*n)
	for i := 0; i < n; i++ {
		assert.Equal(t, RoleUser, messages[2*i].Role)
		assert.Equal(t, fmt.Sprintf("question %d", i), messages[2*i].Content)
		assert.Equal(t, RoleAssistant, messages[2*i+1].Role)
		assert.Equal(t, fmt.Sprintf("echo: question %d", i), messages[2*i+1].Content)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	sess := New(&scriptedCompleter{reply: func(string) (string, error) { return "hi", nil }})

	done, ok := sess.Submit(context.Background(), "hello")
	require.True(t, ok)
	<-done

	messages := sess.Messages()
	messages[0].Content = "tampered"
	assert.Equal(t, "hello", sess.Messages()[0].Content)
}
