package domain

import "slices"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Source is a grounding citation attached to a model message.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type Message struct {
	ID             string   `json:"id"`
	Role           Role     `json:"role"`
	Text           string   `json:"text"`
	Image          string   `json:"image,omitempty"`
	GeneratedImage string   `json:"generatedImage,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
	IsError        bool     `json:"isError,omitempty"`
}

// Session is one conversation. Messages always start with the seed greeting.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// History returns the messages after the seed greeting.
func (s Session) History() []Message {
	if len(s.Messages) <= 1 {
		return nil
	}
	return s.Messages[1:]
}

// IndexOf returns the position of the message with the given id, or -1.
func (s Session) IndexOf(messageID string) int {
	return slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == messageID })
}

// Last returns the most recent message.
func (s Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// SessionCollection is the full persisted state: sessions newest first and
// the active session id.
type SessionCollection struct {
	Sessions []Session `json:"sessions"`
	ActiveID string    `json:"activeSessionId"`
}

func (c SessionCollection) Find(id string) (Session, int, bool) {
	for i, s := range c.Sessions {
		if s.ID == id {
			return s, i, true
		}
	}
	return Session{}, -1, false
}

// Active returns the active session. ok is false only for an empty collection.
func (c SessionCollection) Active() (Session, bool) {
	s, _, ok := c.Find(c.ActiveID)
	return s, ok
}

// Clone deep-copies the collection so a snapshot never aliases another.
func (c SessionCollection) Clone() SessionCollection {
	out := SessionCollection{
		ActiveID: c.ActiveID,
		Sessions: make([]Session, len(c.Sessions)),
	}
	for i, s := range c.Sessions {
		out.Sessions[i] = s.Clone()
	}
	return out
}

func (s Session) Clone() Session {
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m
		msgs[i].Sources = slices.Clone(m.Sources)
	}
	s.Messages = msgs
	return s
}
