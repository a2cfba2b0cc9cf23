package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SessionState is a user's position in the pairing lifecycle.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateSearching SessionState = "searching"
	StatePaired    SessionState = "paired"
)

// MessageKind enumerates every payload the relay accepts.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindDocument MessageKind = "document"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindVoice    MessageKind = "voice"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
)

var messageKinds = map[MessageKind]struct{}{
	KindText: {}, KindPhoto: {}, KindDocument: {}, KindVideo: {},
	KindAudio: {}, KindVoice: {}, KindSticker: {}, KindLocation: {},
}

// ParseMessageKind maps a wire value onto the closed set of kinds.
func ParseMessageKind(s string) (MessageKind, error) {
	k := MessageKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := messageKinds[k]; !ok {
		return "", fmt.Errorf("unsupported message kind %q", s)
	}
	return k, nil
}

// IsMedia reports whether the kind carries an opaque media handle.
func (k MessageKind) IsMedia() bool {
	switch k {
	case KindPhoto, KindDocument, KindVideo, KindAudio, KindVoice, KindSticker:
		return true
	}
	return false
}

// Location is a shared map point.
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

func (l Location) String() string {
	return strconv.FormatFloat(l.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', 6, 64)
}

// Message is a relayed payload. Exactly one content field is meaningful per Kind:
// Text for text, MediaRef for media kinds (Text then holds the caption), Location for locations.
type Message struct {
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	MediaRef string      `json:"media_ref,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	Emoji    string      `json:"emoji,omitempty"`
	Location *Location   `json:"location,omitempty"`
}

// Validate checks that the content field required by Kind is present.
func (m Message) Validate() error {
	if _, ok := messageKinds[m.Kind]; !ok {
		return fmt.Errorf("unsupported message kind %q", m.Kind)
	}
	switch {
	case m.Kind == KindText:
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("text message is empty")
		}
	case m.Kind == KindLocation:
		if m.Location == nil {
			return fmt.Errorf("location message has no coordinates")
		}
		if !finite(m.Location.Latitude) || !finite(m.Location.Longitude) {
			return fmt.Errorf("location coordinates must be finite numbers")
		}
		if m.Location.Latitude < -90 || m.Location.Latitude > 90 || m.Location.Longitude < -180 || m.Location.Longitude > 180 {
			return fmt.Errorf("location %s out of range", m.Location)
		}
	case m.Kind.IsMedia():
		if strings.TrimSpace(m.MediaRef) == "" {
			return fmt.Errorf("%s message has no media reference", m.Kind)
		}
	}
	return nil
}

// ContentRef is the uniform content reference kept in transcripts.
func (m Message) ContentRef() string {
	switch {
	case m.Kind == KindText:
		return m.Text
	case m.Kind == KindLocation && m.Location != nil:
		return m.Location.String()
	default:
		return m.MediaRef
	}
}

// Caption returns the text attached to a non-text message.
func (m Message) Caption() string {
	if m.Kind == KindText {
		return ""
	}
	return m.Text
}

// Summary renders a one-line human description used by the oversight log.
func (m Message) Summary() string {
	switch m.Kind {
	case KindText:
		return m.Text
	case KindPhoto:
		return "📷 Photo"
	case KindDocument:
		name := m.FileName
		if name == "" {
			name = "Unknown"
		}
		return "📄 Document: " + name
	case KindVideo:
		return "🎥 Video"
	case KindAudio:
		return "🎵 Audio"
	case KindVoice:
		return "🎤 Voice message"
	case KindSticker:
		return "🎭 Sticker: " + m.Emoji
	case KindLocation:
		if m.Location == nil {
			return "📍 Location"
		}
		return fmt.Sprintf("📍 Location: %v, %v", m.Location.Latitude, m.Location.Longitude)
	}
	return string(m.Kind)
}

// TranscriptEntry is one relayed message as remembered by a pairing.
type TranscriptEntry struct {
	Seq       uint64      `json:"seq" bson:"seq"`
	SenderID  string      `json:"sender_id" bson:"sender_id"`
	Kind      MessageKind `json:"kind" bson:"kind"`
	Content   string      `json:"content" bson:"content"`
	Caption   string      `json:"caption,omitempty" bson:"caption,omitempty"`
	Summary   string      `json:"summary" bson:"summary"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

// PairingEdge is the mutual partner relationship between two users.
type PairingEdge struct {
	SessionID string    `json:"session_id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	PairedAt  time.Time `json:"paired_at"`
}

// Other returns the participant that is not userID.
func (e PairingEdge) Other(userID string) string {
	if e.UserA == userID {
		return e.UserB
	}
	return e.UserA
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
