package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Tags is a list of short labels stored as a JSON array in relational stores.
type Tags []string

// Value implements driver.Valuer
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(t))
}

// User is the profile record of a user. ID is the opaque identity issued by the
// identity service (Firebase UID, or a uuid for local accounts).
type User struct {
	ID                string    `json:"id" gorm:"primaryKey;size:128" firestore:"-"`
	Email             string    `json:"email" gorm:"index" firestore:"email"`
	Password          string    `json:"-" firestore:"password,omitempty"`
	DisplayName       string    `json:"displayName" gorm:"index" firestore:"displayName"`
	Nickname          string    `json:"nickname,omitempty" gorm:"index" firestore:"nickname,omitempty"`
	PhotoURL          string    `json:"photoURL,omitempty" firestore:"photoURL"`
	Interests         Tags      `json:"interests,omitempty" gorm:"type:text" firestore:"interests,omitempty"`
	Latitude          *float64  `json:"latitude,omitempty" firestore:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty" firestore:"longitude,omitempty"`
	TagRadiusKm       float64   `json:"tagRadiusKm,omitempty" firestore:"tagRadiusKm,omitempty"`
	Onboarded         bool      `json:"onboarded" firestore:"onboarded"`
	NotificationCount int64     `json:"notificationCount" firestore:"notificationCount"`
	CreatedAt         time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// HasLocation reports whether the user shared a position for tag alerts.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// ToDirectoryEntry projects the profile onto the mention directory.
func (u *User) ToDirectoryEntry() DirectoryEntry {
	return DirectoryEntry{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Nickname:    u.Nickname,
		PhotoURL:    u.PhotoURL,
	}
}

// DirectoryEntry is one row of the user directory used for mention resolution.
type DirectoryEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Nickname    string `json:"nickname,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type CreateLocalUserRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest carries the editable profile fields (profile edit and onboarding screens).
type UpdateUserRequest struct {
	DisplayName *string  `json:"displayName,omitempty" validate:"omitempty,min=2,max=50"`
	Nickname    *string  `json:"nickname,omitempty" validate:"omitempty,min=2,max=30,handle"`
	PhotoURL    *string  `json:"photoURL,omitempty" validate:"omitempty,url"`
	Interests   []string `json:"interests,omitempty" validate:"omitempty,max=20,dive,min=1,max=30"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	TagRadiusKm *float64 `json:"tagRadiusKm,omitempty" validate:"omitempty,gt=0,lte=500"`
	Onboarded   *bool    `json:"onboarded,omitempty"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
