package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

func TestRows(t *testing.T) {
	sent := time.Date(2024, 10, 6, 15, 45, 0, 0, time.FixedZone("CEST", 2*60*60))
	conv := &contract.Conversation{
		ID:                   "U1",
		LastMessageTimestamp: &sent,
		Messages: []contract.Message{
			{ID: "m1", SenderID: "U1", SenderName: "Ulla", Text: "hello", Time: &sent},
			{SenderID: "A1", SenderName: "Sam", Text: "legacy"},
			{ID: "m1", SenderID: "U1", Text: "duplicate id"},
			{ID: "m3", SenderID: "A1", Text: "pending"},
		},
	}

	rows := Rows(conv)
	require.Len(t, rows, 4)

	assert.Equal(t, "m1", rows[0].MessageID)
	assert.True(t, rows[0].SentAt.Valid)
	assert.Equal(t, time.UTC, rows[0].SentAt.Time.Location())
	assert.True(t, rows[0].ConversationUpdatedAt.Valid)

	assert.Equal(t, "legacy-1", rows[1].MessageID)
	assert.Equal(t, 1, rows[1].Position)
	assert.Equal(t, "legacy-2", rows[2].MessageID)

	assert.Equal(t, "m3", rows[3].MessageID)
	assert.False(t, rows[3].SentAt.Valid)

	for _, r := range rows {
		assert.Equal(t, "U1", r.ConversationID)
	}
	assert.Nil(t, Rows(nil))
	assert.Empty(t, Rows(&contract.Conversation{ID: "U2"}))
}

func TestExport(t *testing.T) {
	dsn := os.Getenv("ARCHIVE_DSN")
	if dsn == "" {
		t.Skip("ARCHIVE_DSN not set")
	}
	ctx := context.Background()
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	exporter := NewExporter(db)
	require.NoError(t, exporter.Migrate(ctx))
	_, err = db.ExecContext(ctx, `DELETE FROM chat_message WHERE conversation_id IN ('test-U1', 'test-U2')`)
	require.NoError(t, err)

	src := memdb.New()
	require.NoError(t, src.CreateConversation(ctx, "test-U1"))
	require.NoError(t, src.CreateConversation(ctx, "test-U2"))
	now := time.Now()
	require.NoError(t, src.AppendMessage(ctx, "test-U1", contract.Message{ID: "a", SenderID: "test-U1", Text: "hi", Time: &now}))
	require.NoError(t, src.AppendMessage(ctx, "test-U1", contract.Message{ID: "b", SenderID: "A1", Text: "hello"}))

	for range 2 {
		stats, err := exporter.Export(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Messages)
		assert.Zero(t, stats.Failed)
	}

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT count(*) FROM chat_message WHERE conversation_id = 'test-U1'`))
	assert.Equal(t, 2, count)

	var rows []Row
	require.NoError(t, db.SelectContext(ctx, &rows,
		`SELECT conversation_id, message_id, position, sender_id, sender_name, text, sent_at, conversation_updated_at
		 FROM chat_message WHERE conversation_id = 'test-U1' ORDER BY position`))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].SentAt.Valid)
	assert.False(t, rows[1].SentAt.Valid)
}
