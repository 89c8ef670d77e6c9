package models

import "time"

type Chat struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"orderId"`
	UserID          string     `json:"userId"`
	ProviderID      string     `json:"providerId"`
	UserName        string     `json:"userName"`
	ProviderName    string     `json:"providerName"`
	LastMessage     string     `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
	Participants    []string   `json:"participants"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant.
func (c *Chat) Peer(userID string) string {
	if userID == c.UserID {
		return c.ProviderID
	}
	return c.UserID
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
)

const SystemSender = "system"

type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chatId"`
	OrderID     string      `json:"orderId"`
	SenderID    string      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	RecipientID string      `json:"recipientId"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	Timestamp   time.Time   `json:"timestamp"`
}
