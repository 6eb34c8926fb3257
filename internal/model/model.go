// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"time"
)

// SourceKind defines the type of a monitored source.
type SourceKind string

// Supported source kinds.
const (
	SourceRSS      SourceKind = "rss"
	SourceTelegram SourceKind = "telegram"
)

// UserSettings holds per-user opaque configuration consumed by the pipeline.
type UserSettings struct {
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	NotifyChatID int64  `json:"notify_chat_id,omitempty"`
}

// User owns sources, tasks, and everything derived from them.
type User struct {
	ID        int64
	Email     string
	Settings  UserSettings
	CreatedAt time.Time
}

// Source represents a feed or channel a user wants polled.
// Location is a feed URL for RSS sources and a channel name for Telegram ones.
type Source struct {
	ID          int64
	UserID      int64
	Name        string
	Kind        SourceKind
	Location    string
	IsActive    bool
	LastFetchAt *time.Time
	CreatedAt   time.Time
}

// Item is one fetched article or channel message. Items are immutable after
// insertion; URL and ExternalID are empty when the source provides none.
type Item struct {
	ID          int64
	SourceID    int64
	Title       string
	Content     string
	URL         string
	ExternalID  string
	PublishedAt time.Time
	FetchedAt   time.Time
	Raw         json.RawMessage
}

// Task is a user-authored natural-language filter applied to linked sources.
type Task struct {
	ID        int64
	UserID    int64
	Name      string
	Prompt    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Link states that items from a source should be evaluated against a task.
type Link struct {
	SourceID  int64
	TaskID    int64
	CreatedAt time.Time
}

// Verdict is the stored outcome of evaluating one item against one task.
// At most one verdict exists per (item, task) pair; a processed verdict is
// never re-evaluated.
type Verdict struct {
	ItemID      int64
	TaskID      int64
	Processed   bool
	Result      *bool
	Response    json.RawMessage
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
