package chat

import (
	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/role"
)

const (
	defaultAdminName = "Admin"
	defaultUserName  = "User"
)

// Authorize enforces the access policy: users reach only the conversation
// keyed by their own id, admins reach any conversation.
func Authorize(viewer auth.Identity, r role.Role, conversationID string) error {
	if r == role.Admin {
		return nil
	}
	if viewer.ID != "" && conversationID == viewer.ID {
		return nil
	}
	return ErrForbidden
}

// Target picks the conversation a request refers to. Users default to their
// own conversation; admins must name one.
func Target(viewer auth.Identity, r role.Role, requested string) (string, error) {
	if requested == "" {
		if r == role.Admin {
			return "", ErrInvalidConversationID
		}
		requested = viewer.ID
	}
	if err := ValidateConversationID(requested); err != nil {
		return "", err
	}
	if err := Authorize(viewer, r, requested); err != nil {
		return "", err
	}
	return requested, nil
}

// SenderName is the name stamped on outgoing messages.
func SenderName(viewer auth.Identity, r role.Role) string {
	if viewer.DisplayName != "" {
		return viewer.DisplayName
	}
	if r == role.Admin {
		return defaultAdminName
	}
	return defaultUserName
}
