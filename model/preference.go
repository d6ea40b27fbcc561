package model

import "time"

// Preference stores one module setting as JSON.
type Preference struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Module    string    `json:"module" gorm:"size:64;not null;uniqueIndex:idx_pref_module_key"`
	Key       string    `json:"key" gorm:"size:128;not null;uniqueIndex:idx_pref_module_key"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Preference) TableName() string {
	return "preferences"
}

// SessionTrack is one row of the tracklist saved at shutdown.
type SessionTrack struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Session    string    `json:"session" gorm:"size:64;index;not null"`
	Position   int       `json:"position" gorm:"not null"`
	Serialized string    `json:"serialized" gorm:"type:text;not null"`
	Current    bool      `json:"current" gorm:"default:false"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (SessionTrack) TableName() string {
	return "session_tracks"
}

// Session is a saved tracklist: serialized tracks in play order plus the current index.
type Session struct {
	Tracks  []*Track
	Current int // -1 when nothing was current
}
