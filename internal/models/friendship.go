package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

type Friendship struct {
	ID            string           `bson:"_id" json:"_id"`
	RequestFromID string           `bson:"requestFromId" json:"requestFromId"`
	RequestToID   string           `bson:"requestToId" json:"requestToId"`
	Status        FriendshipStatus `bson:"status" json:"status"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// Involves reports whether the friendship connects a and b in either direction.
func (f *Friendship) Involves(a, b string) bool {
	return (f.RequestFromID == a && f.RequestToID == b) || (f.RequestFromID == b && f.RequestToID == a)
}

// Other returns the member of the friendship that is not userID.
func (f *Friendship) Other(userID string) string {
	if f.RequestFromID == userID {
		return f.RequestToID
	}
	return f.RequestFromID
}
