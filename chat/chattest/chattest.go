// Package chattest holds behaviour tests every chat.Backend must pass.
package chattest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nextTimeout = 5 * time.Second

// RunBackendTests exercises b. Conversation ids are random, so b may be shared.
func RunBackendTests(t *testing.T, b chat.Backend) {
	t.Run("CreateIsIdempotent", func(t *testing.T) { testCreateIsIdempotent(t, b) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, b) })
	t.Run("AppendToMissing", func(t *testing.T) { testAppendToMissing(t, b) })
	t.Run("AppendSetsTimestamp", func(t *testing.T) { testAppendSetsTimestamp(t, b) })
	t.Run("AppendIsUnion", func(t *testing.T) { testAppendIsUnion(t, b) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, b) })
	t.Run("Watch", func(t *testing.T) { testWatch(t, b) })
	t.Run("List", func(t *testing.T) { testList(t, b) })
}

func newID() string {
	return "test-" + uuid.NewString()
}

func message(sender, text string) contract.Message {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return contract.Message{
		ID:         uuid.NewString(),
		SenderID:   sender,
		SenderName: sender,
		Text:       text,
		Time:       &now,
	}
}

func testCreateIsIdempotent(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	id := newID()

	require.NoError(t, b.CreateConversation(ctx, id))
	conv, err := b.Conversation(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Nil(t, conv.LastMessageTimestamp)

	require.NoError(t, b.AppendMessage(ctx, id, message(id, "hello")))
	err = b.CreateConversation(ctx, id)
	assert.ErrorIs(t, err, chat.ErrConversationExists)

	conv, err = b.Conversation(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)
}

func testConcurrentCreate(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	id := newID()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.CreateConversation(ctx, id)
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, chat.ErrConversationExists)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	all, err := b.Conversations(ctx)
	require.NoError(t, err)
	count := 0
	for _, c := range all {
		if c.ID == id {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func testAppendToMissing(t *testing.T, b chat.Backend) {
	err := b.AppendMessage(context.Background(), newID(), message("U1", "hi"))
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)

	_, err = b.Conversation(context.Background(), newID())
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func testAppendSetsTimestamp(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	id := newID()
	require.NoError(t, b.CreateConversation(ctx, id))

	first := message(id, "first")
	second := message("A1", "second")
	require.NoError(t, b.AppendMessage(ctx, id, first))
	require.NoError(t, b.AppendMessage(ctx, id, second))

	conv, err := b.Conversation(ctx, id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "first", conv.Messages[0].Text)
	assert.Equal(t, "second", conv.Messages[1].Text)
	assert.Equal(t, first.ID, conv.Messages[0].ID)
	require.NotNil(t, conv.Messages[0].Time)
	require.NotNil(t, conv.LastMessageTimestamp)
}

func testAppendIsUnion(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	id := newID()
	require.NoError(t, b.CreateConversation(ctx, id))

	msg := message(id, "retried")
	require.NoError(t, b.AppendMessage(ctx, id, msg))
	require.NoError(t, b.AppendMessage(ctx, id, msg))

	twin := msg
	twin.ID = uuid.NewString()
	require.NoError(t, b.AppendMessage(ctx, id, twin))

	conv, err := b.Conversation(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func testConcurrentAppends(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	id := newID()
	require.NoError(t, b.CreateConversation(ctx, id))

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender := id
			if i%2 == 1 {
				sender = "admin"
			}
			assert.NoError(t, b.AppendMessage(ctx, id, message(sender, fmt.Sprintf("message %d", i))))
		}()
	}
	wg.Wait()

	conv, err := b.Conversation(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, n)
}

type nextResult struct {
	conv *contract.Conversation
	err  error
}

func next(t *testing.T, it chat.SnapshotIterator) (*contract.Conversation, error) {
	t.Helper()
	ch := make(chan nextResult, 1)
	go func() {
		conv, err := it.Next()
		ch <- nextResult{conv: conv, err: err}
	}()
	select {
	case r := <-ch:
		return r.conv, r.err
	case <-time.After(nextTimeout):
		t.Fatalf("no snapshot within %s", nextTimeout)
		return nil, nil
	}
}

func testWatch(t *testing.T, b chat.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := newID()

	it := b.WatchConversation(ctx, id)
	defer it.Stop()

	conv, err := next(t, it)
	require.NoError(t, err)
	assert.Nil(t, conv, "missing document must yield a nil snapshot")

	require.NoError(t, b.CreateConversation(ctx, id))
	conv, err = next(t, it)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Empty(t, conv.Messages)

	require.NoError(t, b.AppendMessage(ctx, id, message(id, "hello")))
	conv, err = next(t, it)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.Messages[0].Text)

	cancel()
	_, err = next(t, it)
	assert.Error(t, err)
}

func testList(t *testing.T, b chat.Backend) {
	ctx := context.Background()
	ids := []string{newID(), newID()}
	for _, id := range ids {
		require.NoError(t, b.CreateConversation(ctx, id))
	}
	all, err := b.Conversations(ctx)
	require.NoError(t, err)

	found := map[string]bool{}
	for _, c := range all {
		found[c.ID] = true
	}
	for _, id := range ids {
		assert.True(t, found[id], "conversation %s missing from list", id)
	}
}
