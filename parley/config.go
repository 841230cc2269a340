package parley

import "time"

// Config controls how the SDK connects and synchronizes.
type Config struct {
	URL    string
	Token  string // JWT for hello
	UserID string // identity used for optimistic reactions and read state

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// Reconnect policy. Zero MaxReconnectTries disables reconnecting.
	AutoReconnect     bool
	ReconnectInterval time.Duration
	MaxReconnectDelay time.Duration
	MaxReconnectTries int

	// HistoryPageSize is the number of messages requested per history page.
	HistoryPageSize int

	// DuplicateWindow suppresses an identical submission repeated within
	// this interval (accidental double-send).
	DuplicateWindow time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		AutoReconnect:     true,
		ReconnectInterval: 2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		MaxReconnectTries: 10,
		HistoryPageSize:   50,
		DuplicateWindow:   700 * time.Millisecond,
	}
}
