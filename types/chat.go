package types

import "time"

const ChatFileName = "chat.json"

type Message struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat keeps a record of version specific comments, stored as chat.json.
type Chat struct {
	Messages []Message `json:"messages"`
}

func NewChat() *Chat {
	return &Chat{Messages: []Message{}}
}

func NewMessage(author, text string) Message {
	return Message{Author: author, Text: text, Timestamp: time.Now().UTC()}
}

func (c *Chat) FileName() string { return ChatFileName }

func (c *Chat) Merge(update *Chat) error {
	if update == nil {
		return nil
	}
	c.Messages = append(c.Messages, update.Messages...)
	return nil
}
