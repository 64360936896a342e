// Package sessions stores per-user agent conversations in DynamoDB.
//
// A session holds a free-form state map and an ordered log of events. The
// session item and its events share one partition:
//
//	PK=SESSION#<id>  SK=META                          session metadata + state
//	PK=SESSION#<id>  SK=EVENT#<unix nanos>#<event id>  one item per event
//
// GSI1 (GSI1PK=APP#<app>#USER#<user>, GSI1SK=<create time>) lists a user's
// sessions newest first.
package sessions

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCustomSessionID = errors.New("caller-supplied session ids are not supported")
)

// TempPrefix marks state keys that live only for the current invocation.
const TempPrefix = "temp:"

type Session struct {
	ID         string         `json:"id"`
	AppName    string         `json:"app_name"`
	UserID     string         `json:"user_id"`
	State      map[string]any `json:"state"`
	Events     []Event        `json:"events,omitempty"`
	CreateTime time.Time      `json:"create_time"`
	UpdateTime time.Time      `json:"update_time"`
}

// Part is one piece of a message: either text or inline bytes.
type Part struct {
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"-"`
	// Size is kept for binary parts loaded back from storage, where Data is not persisted.
	Size int `json:"size,omitempty"`
}

func (p Part) IsBinary() bool {
	return p.MIMEType != "" && p.Text == ""
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the text parts.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type Event struct {
	ID           string         `json:"id"`
	Author       string         `json:"author"`
	InvocationID string         `json:"invocation_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Content      *Content       `json:"content,omitempty"`
	StateDelta   map[string]any `json:"state_delta,omitempty"`
	Partial      bool           `json:"partial,omitempty"`
	TurnComplete bool           `json:"turn_complete,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

type CreateRequest struct {
	AppName string
	UserID  string
	// SessionID must be empty; ids are always generated by the store.
	SessionID string
	State     map[string]any
}

type GetRequest struct {
	AppName   string
	UserID    string
	SessionID string
	// NumRecentEvents keeps only the last N events. Takes precedence over AfterTimestamp.
	NumRecentEvents int
	// AfterTimestamp keeps events at or after this instant.
	AfterTimestamp time.Time
}
