// Package firestoredb stores conversations and role records in Firestore.
package firestoredb

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/role"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Client struct {
	fs *firestore.Client
}

var (
	_ chat.Backend = (*Client)(nil)
	_ role.Source  = (*Client)(nil)
)

// New connects to Firestore. An empty projectID is read from the metadata server.
func New(ctx context.Context, projectID string) (*Client, error) {
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve project id: %w", err)
		}
	}
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Client{fs: fs}, nil
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) conversation(id string) *firestore.DocumentRef {
	return c.fs.Collection(contract.ConversationsCollection).Doc(id)
}

func (c *Client) CreateConversation(ctx context.Context, id string) error {
	_, err := c.conversation(id).Create(ctx, map[string]any{
		contract.MessagesField:             []any{},
		contract.LastMessageTimestampField: nil,
	})
	if status.Code(err) == codes.AlreadyExists {
		return chat.ErrConversationExists
	}
	return err
}

func (c *Client) Conversation(ctx context.Context, id string) (*contract.Conversation, error) {
	snap, err := c.conversation(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeConversation(snap)
}

// AppendMessage issues a single update: array-union on messages and a
// server timestamp on lastMessageTimestamp. There is no read of the
// current array, so concurrent writers can't overwrite each other.
func (c *Client) AppendMessage(ctx context.Context, id string, msg contract.Message) error {
	_, err := c.conversation(id).Update(ctx, []firestore.Update{
		{Path: contract.MessagesField, Value: firestore.ArrayUnion(msg)},
		{Path: contract.LastMessageTimestampField, Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return chat.ErrConversationNotFound
	}
	return err
}

func (c *Client) Conversations(ctx context.Context) ([]*contract.Conversation, error) {
	snaps, err := c.fs.Collection(contract.ConversationsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*contract.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		conv, err := decodeConversation(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (c *Client) WatchConversation(ctx context.Context, id string) chat.SnapshotIterator {
	return &snapshotIterator{it: c.conversation(id).Snapshots(ctx)}
}

func (c *Client) RoleRecord(ctx context.Context, userID string) (*contract.RoleRecord, error) {
	snap, err := c.fs.Collection(contract.RolesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, role.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := &contract.RoleRecord{}
	if err := snap.DataTo(rec); err != nil {
		return nil, fmt.Errorf("decode role %s: %w", userID, err)
	}
	rec.UserID = snap.Ref.ID
	return rec, nil
}

// SetRole writes a role record; only out-of-band tooling calls this.
func (c *Client) SetRole(ctx context.Context, userID string, r role.Role) error {
	_, err := c.fs.Collection(contract.RolesCollection).Doc(userID).Set(ctx, map[string]any{
		contract.RoleField: string(r),
	}, firestore.MergeAll)
	return err
}

func (c *Client) RoleRecords(ctx context.Context) ([]contract.RoleRecord, error) {
	snaps, err := c.fs.Collection(contract.RolesCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]contract.RoleRecord, 0, len(snaps))
	for _, snap := range snaps {
		var rec contract.RoleRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode role %s: %w", snap.Ref.ID, err)
		}
		rec.UserID = snap.Ref.ID
		out = append(out, rec)
	}
	return out, nil
}

type snapshotIterator struct {
	it *firestore.DocumentSnapshotIterator
}

func (s *snapshotIterator) Next() (*contract.Conversation, error) {
	snap, err := s.it.Next()
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, nil
	}
	return decodeConversation(snap)
}

func (s *snapshotIterator) Stop() {
	s.it.Stop()
}

func decodeConversation(snap *firestore.DocumentSnapshot) (*contract.Conversation, error) {
	if snap == nil || !snap.Exists() {
		return nil, errors.New("decode conversation: missing document")
	}
	conv := &contract.Conversation{}
	if err := snap.DataTo(conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", snap.Ref.ID, err)
	}
	conv.ID = snap.Ref.ID
	if conv.Messages == nil {
		conv.Messages = []contract.Message{}
	}
	return conv, nil
}
