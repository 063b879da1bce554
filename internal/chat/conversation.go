package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation is the ordered message list shown to the user.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

func NewConversation(greeting string) *Conversation {
	c := &Conversation{now: time.Now}
	if greeting != "" {
		c.Add(Message{Author: Eryon, Text: greeting})
	}
	return c
}

// Add appends m, assigning an ID and timestamp when missing, and returns the ID.
func (c *Conversation) Add(m Message) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Created.IsZero() {
		m.Created = c.now()
	}
	c.messages = append(c.messages, m)

	return m.ID
}

// AddLoading appends an empty placeholder message from Eryon.
func (c *Conversation) AddLoading() string {
	return c.Add(Message{Author: Eryon, Loading: true})
}

// Resolve merges r into the message and clears its loading flag.
func (c *Conversation) Resolve(id string, r Response) bool {
	return c.update(id, func(m *Message) {
		if r.Text != "" {
			m.Text = r.Text
		}
		if r.ImagePath != "" {
			m.ImagePath = r.ImagePath
		}
		if r.VideoPath != "" {
			m.VideoPath = r.VideoPath
		}
		if r.AudioPath != "" {
			m.AudioPath = r.AudioPath
		}
		if len(r.Grounding) > 0 {
			m.Grounding = append([]GroundingChunk(nil), r.Grounding...)
		}
		m.Loading = false
	})
}

// SetText replaces the text of a message without touching its loading flag.
func (c *Conversation) SetText(id, text string) bool {
	return c.update(id, func(m *Message) {
		m.Text = text
	})
}

// Fail replaces the text of a message with an error description.
func (c *Conversation) Fail(id, text string) bool {
	return c.update(id, func(m *Message) {
		m.Text = text
		m.Loading = false
	})
}

func (c *Conversation) update(id string, fn func(*Message)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == id {
			fn(&c.messages[i])
			return true
		}
	}
	return false
}

func (c *Conversation) Get(id string) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Messages returns a snapshot.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Message(nil), c.messages...)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.messages)
}
