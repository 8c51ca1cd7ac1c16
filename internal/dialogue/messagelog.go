package dialogue

import "time"

// MessageLog is the append-only record of exchanged turns.
type MessageLog struct {
	entries []Message
	nextSeq int64
	now     func() time.Time
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{nextSeq: 1, now: time.Now}
}

// Append adds a message unless it repeats the (sender, content) of the last
// entry. It returns the stored message and whether it was appended.
func (l *MessageLog) Append(sender Sender, content Content, origin State) (Message, bool) {
	if n := len(l.entries); n > 0 {
		last := l.entries[n-1]
		if last.Sender == sender && last.Content.Equal(content) {
			return last, false
		}
	}
	m := Message{
		Seq:       l.nextSeq,
		Sender:    sender,
		Content:   content,
		CreatedAt: l.now(),
		Origin:    origin,
	}
	l.nextSeq++
	l.entries = append(l.entries, m)
	return m, true
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	return len(l.entries)
}

// Messages returns a copy of all entries.
func (l *MessageLog) Messages() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the entries with a sequence id greater than seq.
func (l *MessageLog) Since(seq int64) []Message {
	for i, m := range l.entries {
		if m.Seq > seq {
			out := make([]Message, len(l.entries)-i)
			copy(out, l.entries[i:])
			return out
		}
	}
	return nil
}
