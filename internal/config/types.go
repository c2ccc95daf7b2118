package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Summary   SummaryConfig   `json:"summary,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig locates the sqlite ledger database.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// BroadcastConfig controls the fan-out engine.
//
// MinSendDelay is the minimum gap between any two consecutive outbound
// sends of a run, enforced globally (not per worker).
type BroadcastConfig struct {
	Workers      int    `json:"workers,omitempty"`
	QueueSize    int    `json:"queue_size,omitempty"`
	MinSendDelay string `json:"min_send_delay,omitempty"` // Go duration string, default "50ms"
	MaxMsgLen    int    `json:"max_msg_len,omitempty"`    // default 4096
}

// SummaryConfig controls the optional scheduled daily reports.
type SummaryConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 9 * * *"
}
