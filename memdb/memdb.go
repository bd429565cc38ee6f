// Package memdb is an in-process document store with the same semantics as
// the Firestore adapter. It backs tests and SUPPORTCHAT_STORE=memory.
package memdb

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/role"
	"google.golang.org/api/iterator"
)

type DB struct {
	mu    sync.Mutex
	docs  map[string]*document
	roles map[string]string
	now   func() time.Time
}

type document struct {
	conv    *contract.Conversation
	version uint64
	changed chan struct{}
}

var (
	_ chat.Backend = (*DB)(nil)
	_ role.Source  = (*DB)(nil)
)

func New() *DB {
	return &DB{
		docs:  make(map[string]*document),
		roles: make(map[string]string),
		now:   time.Now,
	}
}

// WithClock sets the clock used for server-assigned timestamps.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
	return db
}

func (db *DB) docLocked(id string) *document {
	d, ok := db.docs[id]
	if !ok {
		d = &document{changed: make(chan struct{})}
		db.docs[id] = d
	}
	return d
}

func (db *DB) touchLocked(d *document) {
	d.version++
	close(d.changed)
	d.changed = make(chan struct{})
}

func (db *DB) CreateConversation(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d := db.docLocked(id)
	if d.conv != nil {
		return chat.ErrConversationExists
	}
	d.conv = &contract.Conversation{ID: id, Messages: []contract.Message{}}
	db.touchLocked(d)
	return nil
}

func (db *DB) Conversation(_ context.Context, id string) (*contract.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.docs[id]
	if !ok || d.conv == nil {
		return nil, chat.ErrConversationNotFound
	}
	return d.conv.Clone(), nil
}

// AppendMessage behaves like an array-union: an element equal to one
// already stored is not added again.
func (db *DB) AppendMessage(_ context.Context, id string, msg contract.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.docs[id]
	if !ok || d.conv == nil {
		return chat.ErrConversationNotFound
	}
	if !slices.ContainsFunc(d.conv.Messages, func(m contract.Message) bool { return sameMessage(m, msg) }) {
		d.conv.Messages = append(d.conv.Messages, cloneMessage(msg))
	}
	now := db.now().UTC()
	d.conv.LastMessageTimestamp = &now
	db.touchLocked(d)
	return nil
}

func (db *DB) Conversations(_ context.Context) ([]*contract.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*contract.Conversation, 0, len(db.docs))
	for _, d := range db.docs {
		if d.conv != nil {
			out = append(out, d.conv.Clone())
		}
	}
	return out, nil
}

func (db *DB) WatchConversation(ctx context.Context, id string) chat.SnapshotIterator {
	return &snapshotIterator{db: db, id: id, ctx: ctx, stop: make(chan struct{})}
}

func (db *DB) RoleRecord(_ context.Context, userID string) (*contract.RoleRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.roles[userID]
	if !ok {
		return nil, role.ErrNotFound
	}
	return &contract.RoleRecord{UserID: userID, Role: r}, nil
}

func (db *DB) SetRole(userID, r string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.roles[userID] = r
}

type snapshotIterator struct {
	db       *DB
	id       string
	ctx      context.Context
	started  bool
	seen     uint64
	stop     chan struct{}
	stopOnce sync.Once
}

func (it *snapshotIterator) Next() (*contract.Conversation, error) {
	for {
		it.db.mu.Lock()
		d := it.db.docLocked(it.id)
		if !it.started || d.version != it.seen {
			it.started = true
			it.seen = d.version
			conv := d.conv.Clone()
			it.db.mu.Unlock()
			return conv, nil
		}
		changed := d.changed
		it.db.mu.Unlock()

		select {
		case <-changed:
		case <-it.ctx.Done():
			return nil, it.ctx.Err()
		case <-it.stop:
			return nil, iterator.Done
		}
	}
}

func (it *snapshotIterator) Stop() {
	it.stopOnce.Do(func() { close(it.stop) })
}

func sameMessage(a, b contract.Message) bool {
	if a.ID != b.ID || a.SenderID != b.SenderID || a.SenderName != b.SenderName || a.Text != b.Text {
		return false
	}
	if a.Time == nil || b.Time == nil {
		return a.Time == nil && b.Time == nil
	}
	return a.Time.Equal(*b.Time)
}

func cloneMessage(m contract.Message) contract.Message {
	if m.Time != nil {
		t := *m.Time
		m.Time = &t
	}
	return m
}
