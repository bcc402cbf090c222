package models

import "time"

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyOnlyMe  Privacy = "only_me"
)

func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyFriends, PrivacyOnlyMe:
		return true
	}
	return false
}

type Post struct {
	ID            string    `bson:"_id" json:"_id"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	Attachments   []string  `bson:"attachments" json:"attachments"`
	OwnerID       string    `bson:"ownerId" json:"ownerId"`
	AllowComments bool      `bson:"allowComments" json:"allowComments"`
	Tags          []string  `bson:"tags" json:"tags"`
	Privacy       Privacy   `bson:"privacy" json:"privacy"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (p *Post) IsTagged(userID string) bool {
	for _, t := range p.Tags {
		if t == userID {
			return true
		}
	}
	return false
}

type RefKind string

const (
	RefPost    RefKind = "Post"
	RefComment RefKind = "Comment"
)

// ParentRef points a comment at either a post or another comment.
type ParentRef struct {
	Kind RefKind `bson:"refType" json:"refType"`
	ID   string  `bson:"refId" json:"refId"`
}

func (r ParentRef) Valid() bool {
	return (r.Kind == RefPost || r.Kind == RefComment) && r.ID != ""
}

type Comment struct {
	ID         string    `bson:"_id" json:"_id"`
	Content    string    `bson:"content,omitempty" json:"content,omitempty"`
	Attachment string    `bson:"attachment,omitempty" json:"attachment,omitempty"`
	OwnerID    string    `bson:"ownerId" json:"ownerId"`
	Parent     ParentRef `bson:"ref" json:"ref"`
	Tags       []string  `bson:"tags" json:"tags"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// CommentThread is a comment with its direct replies.
type CommentThread struct {
	Comment
	Replies []Comment `json:"replies"`
}

type ReactType string

const (
	ReactLike    ReactType = "like"
	ReactDislike ReactType = "dislike"
)

func (r ReactType) Valid() bool {
	return r == ReactLike || r == ReactDislike
}

type React struct {
	ID        string    `bson:"_id" json:"_id"`
	PostID    string    `bson:"postId" json:"postId"`
	UserID    string    `bson:"userId" json:"userId"`
	Type      ReactType `bson:"type" json:"type"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
