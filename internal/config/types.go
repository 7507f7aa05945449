package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Health    HealthConfig    `json:"health,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendRatePerSec caps outbound messages per second (default 25).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the daily reminder pass.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is the single IANA zone all chats share (default Asia/Bishkek).
	Timezone string `json:"timezone,omitempty"`
	// SendTimeout bounds one chat's mention build + send (Go duration string).
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig controls the optional subscription snapshot store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./remindbot.snapshot.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HealthConfig controls the /health endpoint and the optional keep-alive
// self-ping (useful on free-tier hosts that idle out the process).
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":10000"
	// KeepaliveURL, when set, is GET-ed every KeepaliveInterval.
	KeepaliveURL      string `json:"keepalive_url,omitempty"`
	KeepaliveInterval string `json:"keepalive_interval,omitempty"` // default "14m"
}
