package models

import "time"

type Attachment struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Message is a direct message. Content may be empty only when Attachments
// is not.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}
