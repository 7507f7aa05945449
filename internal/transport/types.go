package transport

import (
	"context"
	"errors"
)

// Update is one inbound event from the chat platform.
// Only plain text messages are routed; everything else is dropped at the
// adapter boundary.
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsGroup      bool
}

// Role is a member's permission level within a chat, as reported by the
// platform.
type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
	RoleUnknown       Role = ""
)

// IsAdmin reports whether the role may manage the chat's subscription.
func (r Role) IsAdmin() bool {
	return r == RoleCreator || r == RoleAdministrator
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ErrChatGone classifies a permanent send failure: the bot was kicked,
// blocked, or the chat no longer exists. Callers should drop the chat.
var ErrChatGone = errors.New("chat permanently unreachable")

// Gateway is the chat-platform boundary the core talks to.
type Gateway interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// SendText delivers a message. A permanent failure wraps ErrChatGone;
	// anything else is transient.
	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) error

	// MemberRole looks up the user's role in the chat.
	MemberRole(ctx context.Context, chatID, userID int64) (Role, error)

	// ResolveMention returns a mention handle for the user, suitable for
	// inclusion in an HTML-mode message.
	ResolveMention(ctx context.Context, chatID, userID int64) (string, error)
}
