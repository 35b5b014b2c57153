package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// ProfileType is the role a user holds.
type ProfileType string

const (
	Citizen ProfileType = "citizen"
	NGO     ProfileType = "ngo"
)

// Valid reports whether t is a known role.
func (t ProfileType) Valid() bool {
	switch t {
	case Citizen, NGO:
		return true
	default:
		return false
	}
}

// Dashboard returns the landing route for the role.
func (t ProfileType) Dashboard() string {
	switch t {
	case Citizen:
		return "/citizen/dashboard"
	case NGO:
		return "/ngo/dashboard"
	default:
		return "/login"
	}
}

// User is the stored account record.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password,omitempty" json:"-"`
	Type      ProfileType        `bson:"type" json:"type"`
	XPPoints  int                `bson:"xpPoints" json:"xpPoints"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Profile is the role-bearing view of a user that travels with a session.
type Profile struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Type     ProfileType        `json:"type"`
	XPPoints int                `json:"xpPoints"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Type:     u.Type,
		XPPoints: u.XPPoints,
	}
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}
