package models

import (
	"time"

	"social-service/internal/encryption"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

type Deactivation struct {
	Deactivated   bool       `bson:"deactivated" json:"deactivated"`
	DeactivatedAt *time.Time `bson:"deactivatedAt,omitempty" json:"deactivatedAt,omitempty"`
}

type User struct {
	ID                  string                    `bson:"_id" json:"_id"`
	FirstName           string                    `bson:"firstName" json:"firstName"`
	LastName            string                    `bson:"lastName" json:"lastName"`
	Email               string                    `bson:"email" json:"email"`
	IsEmailVerified     bool                      `bson:"isEmailVerified" json:"isEmailVerified"`
	Password            string                    `bson:"password" json:"-"`
	DOB                 *time.Time                `bson:"DOB,omitempty" json:"DOB,omitempty"`
	Role                Role                      `bson:"role" json:"role"`
	Provider            Provider                  `bson:"provider" json:"provider"`
	Gender              Gender                    `bson:"gender,omitempty" json:"gender,omitempty"`
	GoogleID            string                    `bson:"googleId,omitempty" json:"-"`
	PhoneEncrypted      *encryption.EncryptedData `bson:"phoneNumber,omitempty" json:"-"`
	PhoneNumber         string                    `bson:"-" json:"phoneNumber,omitempty"`
	ProfileImage        string                    `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	CoverPic            string                    `bson:"coverPic,omitempty" json:"coverPic,omitempty"`
	OTPs                []OTPRecord               `bson:"OTPS" json:"-"`
	BlockList           []string                  `bson:"blockList" json:"-"`
	EnableTwoFactorAuth bool                      `bson:"enableTwoFactorAuth" json:"enableTwoFactorAuth"`
	Deactivation        Deactivation              `bson:"deactivation" json:"deactivation"`
	CreatedAt           time.Time                 `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasBlocked reports whether u has userID in its block list.
func (u *User) HasBlocked(userID string) bool {
	for _, id := range u.BlockList {
		if id == userID {
			return true
		}
	}
	return false
}

// FindOTP returns the index of the first OTP of type t, or -1.
func (u *User) FindOTP(t OTPType) int {
	for i := range u.OTPs {
		if u.OTPs[i].Type == t {
			return i
		}
	}
	return -1
}

// RemoveOTPs drops every OTP whose type is in types.
func (u *User) RemoveOTPs(types ...OTPType) {
	kept := u.OTPs[:0]
	for _, o := range u.OTPs {
		drop := false
		for _, t := range types {
			if o.Type == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, o)
		}
	}
	u.OTPs = kept
}

// Identity is the minimal user shape embedded in responses and socket events.
type Identity struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}
