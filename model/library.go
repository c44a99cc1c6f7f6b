package model

import (
	"time"
)

// Playlist is a user-owned ordered list of tracks. It is always written as a
// whole record.
type Playlist struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:255;not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	Tracks      TrackList `json:"tracks" gorm:"type:text"`
	Created     time.Time `json:"created" gorm:"index"`
	Modified    time.Time `json:"modified"`
}

func (Playlist) TableName() string {
	return "playlists"
}

// LikedTrack marks a track as liked. Presence of the row is the liked state.
type LikedTrack struct {
	ID        string    `json:"id" gorm:"primaryKey;size:180"`
	Track     Track     `json:"track" gorm:"embedded;embeddedPrefix:track_"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (LikedTrack) TableName() string {
	return "liked_tracks"
}

// HistoryEntry is one play of a track. The log is append-only.
type HistoryEntry struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TrackKey  string    `json:"trackKey" gorm:"size:180;index"`
	Track     Track     `json:"track" gorm:"embedded;embeddedPrefix:track_"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (HistoryEntry) TableName() string {
	return "history"
}

// SearchHistoryEntry is one submitted search query.
type SearchHistoryEntry struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Query     string    `json:"query" gorm:"size:512;index"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (SearchHistoryEntry) TableName() string {
	return "search_history"
}

// DownloadRecord describes a track whose audio is stored locally. It always has
// a matching OfflineBlob with the same ID.
type DownloadRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:180"`
	Track     Track     `json:"track" gorm:"embedded;embeddedPrefix:track_"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (DownloadRecord) TableName() string {
	return "downloads"
}

// OfflineBlob holds the raw audio bytes of a downloaded track.
type OfflineBlob struct {
	ID     string `json:"id" gorm:"primaryKey;size:180"`
	Source Source `json:"source" gorm:"size:32;index"`
	Data   []byte `json:"-"`
}

func (OfflineBlob) TableName() string {
	return "offline_tracks"
}

// PendingActionType names a mutation that was queued while offline.
type PendingActionType string

const (
	ActionDownload       PendingActionType = "download"
	ActionLike           PendingActionType = "like"
	ActionAddToPlaylist  PendingActionType = "add_to_playlist"
	ActionRecordPlayback PendingActionType = "record_playback"
)

// PendingAction is a mutation waiting to be replayed. Nonce lets the replay
// target discard duplicates when a replay is retried.
type PendingAction struct {
	ID        int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	Type      PendingActionType `json:"type" gorm:"size:64;index"`
	Data      JSONValue         `json:"data" gorm:"type:text"`
	Nonce     string            `json:"nonce" gorm:"size:36"`
	Timestamp time.Time         `json:"timestamp" gorm:"index"`
}

func (PendingAction) TableName() string {
	return "pending_actions"
}

// Setting is a key/value pair; the value is arbitrary JSON.
type Setting struct {
	Key   string    `json:"key" gorm:"primaryKey;size:191"`
	Value JSONValue `json:"value" gorm:"type:text"`
}

func (Setting) TableName() string {
	return "settings"
}

// AllModels lists every persisted model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&Playlist{},
		&LikedTrack{},
		&HistoryEntry{},
		&SearchHistoryEntry{},
		&DownloadRecord{},
		&OfflineBlob{},
		&PendingAction{},
		&Setting{},
	}
}
