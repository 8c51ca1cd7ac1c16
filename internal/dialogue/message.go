package dialogue

import (
	"slices"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// BlockKind is the kind of a structured content block.
type BlockKind string

const (
	BlockChoices BlockKind = "choices"
	BlockList    BlockKind = "list"
)

// Item is one entry of a structured block.
type Item struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Block is structured content rendered by the host (a list of choices or
// a read-only list).
type Block struct {
	Kind  BlockKind `json:"kind"`
	Title string    `json:"title,omitempty"`
	Items []Item    `json:"items"`
}

// Content is the body of a message: plain text, an optional block, or both.
type Content struct {
	Text  string `json:"text,omitempty"`
	Block *Block `json:"block,omitempty"`
}

// Say builds a text-only content.
func Say(text string) Content {
	return Content{Text: text}
}

// Equal compares two contents by value.
func (c Content) Equal(o Content) bool {
	if c.Text != o.Text {
		return false
	}
	if c.Block == nil || o.Block == nil {
		return c.Block == nil && o.Block == nil
	}
	return c.Block.Kind == o.Block.Kind &&
		c.Block.Title == o.Block.Title &&
		slices.Equal(c.Block.Items, o.Block.Items)
}

// IsZero reports whether the content carries nothing to show.
func (c Content) IsZero() bool {
	return c.Text == "" && c.Block == nil
}

// Message is an entry of the message log. It is never modified after it is
// appended.
type Message struct {
	Seq       int64     `json:"seq"`
	Sender    Sender    `json:"sender"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Origin    State     `json:"-"`
}

// OriginTag is the tag of the state the message was produced in.
func (m Message) OriginTag() string {
	if m.Origin == nil {
		return ""
	}
	return m.Origin.Tag()
}
