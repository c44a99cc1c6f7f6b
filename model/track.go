package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Source identifies the platform a track was fetched from.
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceSoundCloud Source = "soundcloud"
	SourceAudius     Source = "audius"
	SourceNetease    Source = "netease"
	SourceLocal      Source = "local"
)

// Track is a playable item. It is treated as an immutable value once fetched;
// two tracks are the same item iff Source and ID match.
type Track struct {
	ID        string `json:"id" gorm:"column:id;size:128"`
	Title     string `json:"title" gorm:"column:title"`
	Artist    string `json:"artist" gorm:"column:artist"`
	Thumbnail string `json:"thumbnail,omitempty" gorm:"column:thumbnail"`
	Duration  int    `json:"duration" gorm:"column:duration"` // seconds
	Source    Source `json:"source" gorm:"column:source;size:32"`
	URL       string `json:"url" gorm:"column:url"`
}

// Key returns the composite identity "<source>_<id>" used as the primary key of
// liked tracks, downloads and offline blobs.
func (t Track) Key() string {
	return TrackKey(t.Source, t.ID)
}

// SameAs reports whether both values refer to the same logical track.
func (t Track) SameAs(other Track) bool {
	return t.Source == other.Source && t.ID == other.ID
}

// TrackKey builds the composite identity for a source and source-native id.
func TrackKey(source Source, id string) string {
	return fmt.Sprintf("%s_%s", source, id)
}

// TrackList is an ordered track sequence stored as a JSON column.
type TrackList []Track

// Scan implements sql.Scanner.
func (l *TrackList) Scan(value interface{}) error {
	if value == nil {
		*l = TrackList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported TrackList column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*l = TrackList{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Value implements driver.Valuer.
func (l TrackList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// IndexOf returns the position of the first track with the same identity, or -1.
func (l TrackList) IndexOf(t Track) int {
	for i, existing := range l {
		if existing.SameAs(t) {
			return i
		}
	}
	return -1
}
