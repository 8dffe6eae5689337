package telegram

// Update is an inbound Bot API update, trimmed to the fields the bot
// consumes.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text,omitempty"`
	Chat      Chat   `json:"chat"`
	From      *From  `json:"from,omitempty"`
}

// Chat identifies the conversation the message arrived in.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// From identifies the sending Telegram user.
type From struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}
