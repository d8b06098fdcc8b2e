package bollywood

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// --- Test Actors ---

type recordingActor struct {
	mu       sync.Mutex
	received []interface{}
}

func (a *recordingActor) Receive(ctx Context) {
	a.mu.Lock()
	a.received = append(a.received, ctx.Message())
	a.mu.Unlock()

	switch msg := ctx.Message().(type) {
	case string:
		if msg == "echo" {
			ctx.Reply("echo:" + ctx.Self().ID)
		}
		if msg == "panic" {
			panic("boom")
		}
		if msg == "slow" {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

func (a *recordingActor) messages() []interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := make([]interface{}, len(a.received))
	copy(msgs, a.received)
	return msgs
}

func spawnRecorder(t *testing.T, engine *Engine) (*recordingActor, *PID) {
	t.Helper()
	actor := &recordingActor{}
	pid := engine.Spawn(NewProps(func() Actor { return actor }))
	require.NotNil(t, pid)
	return actor, pid
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// --- Tests ---

func TestEngine_SpawnDeliversStartedFirst(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	actor, pid := spawnRecorder(t, engine)
	engine.Send(pid, "hello", nil)

	ok := waitFor(t, time.Second, func() bool { return len(actor.messages()) == 2 })
	require.True(t, ok, "actor should receive Started and the user message")

	msgs := actor.messages()
	assert.Equal(t, Started{}, msgs[0])
	assert.Equal(t, "hello", msgs[1])
}

func TestEngine_SendPreservesOrder(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	actor, pid := spawnRecorder(t, engine)
	for i := 0; i < 100; i++ {
		engine.Send(pid, i, nil)
	}

	ok := waitFor(t, time.Second, func() bool { return len(actor.messages()) == 101 })
	require.True(t, ok)

	for i, msg := range actor.messages()[1:] {
		assert.Equal(t, i, msg)
	}
}

func TestEngine_AskReturnsReply(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	_, pid := spawnRecorder(t, engine)

	reply, err := engine.Ask(pid, "echo", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo:"+pid.ID, reply)
}

func TestEngine_AskWithoutReplyCompletesWithNil(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	actor, pid := spawnRecorder(t, engine)

	reply, err := engine.Ask(pid, "no reply", time.Second)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Contains(t, actor.messages(), "no reply", "Ask must return only after Receive ran")
}

func TestEngine_AskTimeout(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	_, pid := spawnRecorder(t, engine)

	_, err := engine.Ask(pid, "slow", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrAskTimeout)
}

func TestEngine_AskContextWaitsForSlowActor(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	actor, pid := spawnRecorder(t, engine)

	reply, err := engine.AskContext(context.Background(), pid, "slow")
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Contains(t, actor.messages(), "slow")
}

func TestEngine_AskContextCancel(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	_, pid := spawnRecorder(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := engine.AskContext(ctx, pid, "slow")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAskTimeout)
}

func TestEngine_AskContextReturnsWhenActorStops(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	blocker := make(chan struct{})
	pid := engine.Spawn(NewProps(func() Actor {
		return actorFunc(func(ctx Context) {
			if _, ok := ctx.Message().(Started); ok {
				<-blocker
			}
		})
	}))
	require.NotNil(t, pid)

	errCh := make(chan error, 1)
	go func() {
		_, err := engine.AskContext(context.Background(), pid, "queued")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	engine.Stop(pid)
	close(blocker)

	select {
	case err := <-errCh:
		// Depending on which the run loop sees first, the queued Ask is
		// either served or rejected; it never hangs.
		if err != nil {
			assert.True(t, errors.Is(err, ErrActorStopped) || errors.Is(err, ErrActorNotFound), "unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AskContext without deadline hung after the actor stopped")
	}
}

func TestEngine_AskUnknownActor(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	_, err := engine.Ask(&PID{ID: "actor-404"}, "echo", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrActorNotFound)

	_, err = engine.Ask(nil, "echo", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrActorNotFound)
}

func TestEngine_AskPanickingActor(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	_, pid := spawnRecorder(t, engine)

	_, err := engine.Ask(pid, "panic", time.Second)
	assert.ErrorIs(t, err, ErrReceivePanicked)

	// The actor survives a panic in Receive.
	reply, err := engine.Ask(pid, "echo", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo:"+pid.ID, reply)
}

func TestEngine_StopDeliversLifecycleAndRemovesActor(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	actor, pid := spawnRecorder(t, engine)
	_, err := engine.Ask(pid, "sync", time.Second)
	require.NoError(t, err)

	engine.Stop(pid)

	ok := waitFor(t, time.Second, func() bool { return engine.ActorCount() == 0 })
	require.True(t, ok, "actor should be removed after stop")

	msgs := actor.messages()
	assert.Contains(t, msgs, Stopping{})
	assert.Equal(t, Stopped{}, msgs[len(msgs)-1])

	_, err = engine.Ask(pid, "echo", 50*time.Millisecond)
	assert.True(t, errors.Is(err, ErrActorNotFound) || errors.Is(err, ErrActorStopped), "unexpected error: %v", err)
}

func TestEngine_MailboxFull(t *testing.T) {
	engine := NewEngine()
	defer engine.Shutdown(time.Second)

	blocker := make(chan struct{})
	defer close(blocker)

	pid := engine.Spawn(NewProps(func() Actor {
		return actorFunc(func(ctx Context) {
			if _, ok := ctx.Message().(Started); ok {
				<-blocker
			}
		})
	}).WithMailboxSize(1))
	require.NotNil(t, pid)

	// Started occupies the actor; fill the single mailbox slot.
	time.Sleep(20 * time.Millisecond)
	engine.Send(pid, "fill", nil)

	_, err := engine.Ask(pid, "overflow", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrMailboxFull)
}

func TestEngine_ShutdownStopsAllActorsAndRejectsWork(t *testing.T) {
	engine := NewEngine()

	for i := 0; i < 5; i++ {
		spawnRecorder(t, engine)
	}
	assert.Equal(t, 5, engine.ActorCount())

	engine.Shutdown(time.Second)
	assert.Equal(t, 0, engine.ActorCount())

	assert.Nil(t, engine.Spawn(NewProps(func() Actor { return &recordingActor{} })))
	_, err := engine.Ask(&PID{ID: "actor-1"}, "echo", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrEngineStopping)
}

type actorFunc func(ctx Context)

func (f actorFunc) Receive(ctx Context) { f(ctx) }
