package workspace

import (
	"github.com/suPer8Hu/gemini-chat/internal/ai"
	"github.com/suPer8Hu/gemini-chat/internal/chat"
)

type EntryKind string

const (
	EntryPending   EntryKind = "pending"
	EntryPersisted EntryKind = "persisted"
)

// Entry is one transcript line: either a pending optimistic message known by
// its temporary id, or a message the store has assigned an id to.
type Entry struct {
	Kind    EntryKind    `json:"kind"`
	TempID  string       `json:"temp_id,omitempty"`
	Message chat.Message `json:"message"`
}

func Pending(tempID string, m chat.Message) Entry {
	m.ID = tempID
	return Entry{Kind: EntryPending, TempID: tempID, Message: m}
}

func Persisted(m chat.Message) Entry {
	return Entry{Kind: EntryPersisted, Message: m}
}

func (e Entry) ID() string {
	if e.Kind == EntryPending {
		return e.TempID
	}
	return e.Message.ID
}

// State is everything a client renders for one user: the sidebar, the active
// chat, its transcript and the typing indicator.
type State struct {
	UserID        string      `json:"user_id"`
	Chats         []chat.Chat `json:"chats"`
	CurrentChatID string      `json:"current_chat_id"`
	Entries       []Entry     `json:"messages"`
	Typing        bool        `json:"typing"`
}

// The functions below never modify their input; each returns a new State.

func (s State) clone() State {
	out := s
	if s.Chats != nil {
		out.Chats = make([]chat.Chat, len(s.Chats))
		copy(out.Chats, s.Chats)
	}
	if s.Entries != nil {
		out.Entries = make([]Entry, len(s.Entries))
		copy(out.Entries, s.Entries)
	}
	return out
}

func AddEntry(s State, e Entry) State {
	out := s.clone()
	out.Entries = append(out.Entries, e)
	return out
}

// AdoptChat makes c the active chat and puts it at the head of the chat list.
func AdoptChat(s State, c chat.Chat) State {
	out := s.clone()
	out.CurrentChatID = c.ID
	out.Chats = append([]chat.Chat{c}, out.Chats...)
	return out
}

// Promote swaps the pending entry for its persisted message in place.
func Promote(s State, tempID string, m chat.Message) State {
	out := s.clone()
	for i, e := range out.Entries {
		if e.Kind == EntryPending && e.TempID == tempID {
			out.Entries[i] = Persisted(m)
		}
	}
	return out
}

// Rollback drops the pending entry entirely.
func Rollback(s State, tempID string) State {
	out := s.clone()
	var kept []Entry
	for _, e := range s.Entries {
		if e.Kind == EntryPending && e.TempID == tempID {
			continue
		}
		kept = append(kept, e)
	}
	out.Entries = kept
	return out
}

func SetTyping(s State, typing bool) State {
	out := s.clone()
	out.Typing = typing
	return out
}

func SelectChat(s State, chatID string, msgs []chat.Message) State {
	out := s.clone()
	out.CurrentChatID = chatID
	out.Entries = nil
	for _, m := range msgs {
		out.Entries = append(out.Entries, Persisted(m))
	}
	return out
}

// Reset returns to the new-chat condition; the chat list is kept.
func Reset(s State) State {
	out := s.clone()
	out.CurrentChatID = ""
	out.Entries = nil
	return out
}

func RenameChat(s State, chatID, title string) State {
	out := s.clone()
	for i := range out.Chats {
		if out.Chats[i].ID == chatID {
			out.Chats[i].Title = title
		}
	}
	return out
}

// RemoveChat drops the chat from the list and resets if it was active.
func RemoveChat(s State, chatID string) State {
	out := s.clone()
	var kept []chat.Chat
	for _, c := range s.Chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	out.Chats = kept
	if out.CurrentChatID == chatID {
		out = Reset(out)
	}
	return out
}

// Transcript returns the visible messages in generation-input form.
func Transcript(s State) []ai.Message {
	out := make([]ai.Message, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, ai.Message{Role: e.Message.Role, Content: e.Message.Content})
	}
	return out
}
