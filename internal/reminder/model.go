package reminder

import "time"

// DateLayout is the calendar-date form used for LastSentDate.
const DateLayout = "2006-01-02"

// Defaults applied when a chat is (re-)subscribed.
const (
	DefaultHour   = 21
	DefaultMinute = 0
)

// ChatSubscription is the per-chat reminder configuration.
//
// LastSentDate holds the calendar date (DateLayout) of the last successful
// send, or "" if the chat was never sent to. Comparing it against today's
// date is what enforces at-most-one delivery per day.
type ChatSubscription struct {
	Subscribed   bool   `json:"subscribed"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	LastSentDate string `json:"last_sent_date,omitempty"`
}

// NewChatSubscription returns a freshly subscribed record with defaults.
func NewChatSubscription() ChatSubscription {
	return ChatSubscription{Subscribed: true, Hour: DefaultHour, Minute: DefaultMinute}
}

// DueAt reports whether the subscription should fire at the given local time.
func (c ChatSubscription) DueAt(now time.Time) bool {
	if !c.Subscribed {
		return false
	}
	if c.Hour != now.Hour() || c.Minute != now.Minute() {
		return false
	}
	return c.LastSentDate != now.Format(DateLayout)
}

// Snapshot is the restart-surviving view of the registry: subscriptions
// only. Member sets and pending-time state are process-scoped.
type Snapshot map[int64]ChatSubscription

// Entry pairs a chat id with a copy of its subscription.
type Entry struct {
	ChatID int64
	Sub    ChatSubscription
}
