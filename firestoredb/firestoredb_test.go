package firestoredb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/klipach/supportchat/chat/chattest"
	"github.com/klipach/supportchat/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emulatorProject = "supportchat-test"

func newEmulatorClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	c, err := New(context.Background(), emulatorProject)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBackend(t *testing.T) {
	chattest.RunBackendTests(t, newEmulatorClient(t))
}

func TestRoles(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()
	uid := "test-" + uuid.NewString()

	_, err := c.RoleRecord(ctx, uid)
	assert.ErrorIs(t, err, role.ErrNotFound)

	require.NoError(t, c.SetRole(ctx, uid, role.Admin))
	rec, err := c.RoleRecord(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Role)
	assert.Equal(t, uid, rec.UserID)
}
