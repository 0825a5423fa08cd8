package models

import "time"

type ChatMessageKind string

const (
	ChatMessageKindText ChatMessageKind = "text"
	ChatMessageKindGIF  ChatMessageKind = "gif"
)

// ChatMessage is an append-only, already moderated chat line scoped to a match.
type ChatMessage struct {
	ID            string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	MatchID       string          `gorm:"column:match_id;type:varchar(128);not null;index:idx_chat_match_created,priority:1" json:"match_id"`
	Username      string          `gorm:"column:username;type:varchar(32);not null" json:"username"`
	Text          string          `gorm:"column:text;type:text;not null" json:"text"`
	Kind          ChatMessageKind `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	GifURL        *string         `gorm:"column:gif_url;type:text" json:"gif_url,omitempty"`
	DisplayColor  string          `gorm:"column:display_color;type:varchar(16)" json:"display_color"`
	DisplayAvatar string          `gorm:"column:display_avatar;type:varchar(32)" json:"display_avatar"`
	// CreatedAt is the server timestamp that orders the feed.
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_chat_match_created,priority:2,sort:desc" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_message"
}
