package models

import (
	"sort"
	"strings"
	"time"
)

type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

type Conversation struct {
	ID        string           `bson:"_id" json:"_id"`
	Type      ConversationType `bson:"type" json:"type"`
	Members   []string         `bson:"members" json:"members"`
	Name      string           `bson:"name,omitempty" json:"name,omitempty"`
	PairKey   string           `bson:"pairKey,omitempty" json:"-"`
	CreatedAt time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time        `bson:"updatedAt" json:"updatedAt"`
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// PrivatePairKey is the order independent key of a private conversation between a and b.
func PrivatePairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

type Message struct {
	ID             string    `bson:"_id" json:"_id"`
	ConversationID string    `bson:"conversationId" json:"conversationId"`
	SenderID       string    `bson:"senderId" json:"senderId"`
	Text           string    `bson:"text" json:"text"`
	Attachments    []string  `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}
