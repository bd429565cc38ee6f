// Package archive copies conversations into PostgreSQL for reporting.
// Each message becomes one row keyed by (conversation_id, message_id), so
// repeated exports update rows in place.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
)

const Schema = `
CREATE TABLE IF NOT EXISTS chat_message (
	conversation_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	sender_id TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	text TEXT NOT NULL,
	sent_at TIMESTAMPTZ,
	conversation_updated_at TIMESTAMPTZ,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (conversation_id, message_id)
);`

const upsertQuery = `
INSERT INTO chat_message (
	conversation_id, message_id, position, sender_id, sender_name, text, sent_at, conversation_updated_at
) VALUES (
	:conversation_id, :message_id, :position, :sender_id, :sender_name, :text, :sent_at, :conversation_updated_at
)
ON CONFLICT (conversation_id, message_id) DO UPDATE SET
	position = EXCLUDED.position,
	sender_id = EXCLUDED.sender_id,
	sender_name = EXCLUDED.sender_name,
	text = EXCLUDED.text,
	sent_at = EXCLUDED.sent_at,
	conversation_updated_at = EXCLUDED.conversation_updated_at,
	archived_at = now()`

type Row struct {
	ConversationID        string       `db:"conversation_id"`
	MessageID             string       `db:"message_id"`
	Position              int          `db:"position"`
	SenderID              string       `db:"sender_id"`
	SenderName            string       `db:"sender_name"`
	Text                  string       `db:"text"`
	SentAt                sql.NullTime `db:"sent_at"`
	ConversationUpdatedAt sql.NullTime `db:"conversation_updated_at"`
}

// Rows flattens conv. Messages written before ids were stamped get a
// positional id; pending messages have a NULL sent_at.
func Rows(conv *contract.Conversation) []Row {
	if conv == nil {
		return nil
	}
	var updated sql.NullTime
	if conv.LastMessageTimestamp != nil {
		updated = sql.NullTime{Time: conv.LastMessageTimestamp.UTC(), Valid: true}
	}
	rows := make([]Row, 0, len(conv.Messages))
	seen := make(map[string]bool, len(conv.Messages))
	for i, m := range conv.Messages {
		id := m.ID
		if id == "" || seen[id] {
			id = "legacy-" + strconv.Itoa(i)
		}
		seen[id] = true
		row := Row{
			ConversationID:        conv.ID,
			MessageID:             id,
			Position:              i,
			SenderID:              m.SenderID,
			SenderName:            m.SenderName,
			Text:                  m.Text,
			ConversationUpdatedAt: updated,
		}
		if m.Time != nil {
			row.SentAt = sql.NullTime{Time: m.Time.UTC(), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

type Source interface {
	Conversations(ctx context.Context) ([]*contract.Conversation, error)
}

type Stats struct {
	Conversations int
	Messages      int
	Failed        int
}

type Exporter struct {
	db *sqlx.DB
}

func NewExporter(db *sqlx.DB) *Exporter {
	return &Exporter{db: db}
}

func (e *Exporter) Migrate(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Export upserts every conversation from src, one transaction per
// conversation. A failed conversation is logged and counted; the rest are
// still exported.
func (e *Exporter) Export(ctx context.Context, src Source) (Stats, error) {
	logger := log.LoggerFromContext(ctx)
	convs, err := src.Conversations(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("scan conversations: %w", err)
	}

	var stats Stats
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		stats.Conversations++
		n, err := e.exportConversation(ctx, conv)
		if err != nil {
			stats.Failed++
			logger.Error("error while exporting conversation",
				slog.String(log.ConversationIDLogField, conv.ID),
				slog.String(log.ErrorMsgLogField, err.Error()),
			)
			continue
		}
		stats.Messages += n
	}
	return stats, ctx.Err()
}

func (e *Exporter) exportConversation(ctx context.Context, conv *contract.Conversation) (int, error) {
	rows := Rows(conv)
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, upsertQuery, row); err != nil {
			return 0, fmt.Errorf("upsert message %s: %w", row.MessageID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}
