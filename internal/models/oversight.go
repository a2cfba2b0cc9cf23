package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParticipantSnapshot is the profile of a participant at the time a record was written.
type ParticipantSnapshot struct {
	UserID      string `bson:"user_id" json:"user_id"`
	DisplayName string `bson:"display_name" json:"display_name"`
	Language    string `bson:"language" json:"language"`
	Country     string `bson:"country,omitempty" json:"country,omitempty"`
	Gender      string `bson:"gender,omitempty" json:"gender,omitempty"`
}

// Snapshot captures the oversight-relevant fields of a user.
func (u User) Snapshot() ParticipantSnapshot {
	return ParticipantSnapshot{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Language:    u.Language,
		Country:     u.Country,
		Gender:      u.Gender,
	}
}

// ConnectionRecord is written to the oversight channel when a pairing is established.
type ConnectionRecord struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SessionID string              `bson:"session_id" json:"session_id"`
	UserA     ParticipantSnapshot `bson:"user_a" json:"user_a"`
	UserB     ParticipantSnapshot `bson:"user_b" json:"user_b"`
	PairedAt  time.Time           `bson:"paired_at" json:"paired_at"`
}

// TranscriptRecord is the combined session-end transcript of a pairing.
type TranscriptRecord struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SessionID       string              `bson:"session_id" json:"session_id"`
	UserA           ParticipantSnapshot `bson:"user_a" json:"user_a"`
	UserB           ParticipantSnapshot `bson:"user_b" json:"user_b"`
	EndedBy         string              `bson:"ended_by" json:"ended_by"`
	PairedAt        time.Time           `bson:"paired_at" json:"paired_at"`
	EndedAt         time.Time           `bson:"ended_at" json:"ended_at"`
	Entries         []TranscriptEntry   `bson:"entries" json:"entries"`
	FlaggedKeywords []string            `bson:"flagged_keywords,omitempty" json:"flagged_keywords,omitempty"`
}
