package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Verification statuses written by the moderation service.
const (
	VerificationNone     = "None"
	VerificationApproved = "Approved"
	VerificationRejected = "Rejected"
)

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude and longitude.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Lat returns the latitude of the point.
func (g GeoPoint) Lat() float64 {
	if len(g.Coordinates) < 2 {
		return 0
	}
	return g.Coordinates[1]
}

// Lng returns the longitude of the point.
func (g GeoPoint) Lng() float64 {
	if len(g.Coordinates) < 1 {
		return 0
	}
	return g.Coordinates[0]
}

// Post represents an ephemeral, location-scoped post stored in MongoDB
type Post struct {
	ID                 primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Title              string             `json:"title" bson:"title"`
	Caption            string             `json:"caption" bson:"caption"`
	Tags               []string           `json:"tags" bson:"tags"`
	DurationHours      int                `json:"duration" bson:"duration"`
	IsAnonymous        bool               `json:"isAnonymous" bson:"is_anonymous"`
	ImageURL           string             `json:"imageUrl" bson:"image_url"`
	CreatorID          string             `json:"creatorId" bson:"creator_id"`
	Username           string             `json:"username,omitempty" bson:"username,omitempty"`
	UserAvatar         string             `json:"userAvatar,omitempty" bson:"user_avatar,omitempty"`
	Location           GeoPoint           `json:"location" bson:"location"`
	CreatedAt          time.Time          `json:"createdAt" bson:"created_at"`
	ExpiresAt          time.Time          `json:"expiresAt" bson:"expires_at"`
	Likes              int                `json:"likes" bson:"likes"`
	Eyewitnesses       int                `json:"eyewitnesses" bson:"eyewitnesses"`
	EyewitnessedBy     []string           `json:"eyewitnessedBy" bson:"eyewitnessed_by"`
	CommentCount       int                `json:"commentCount" bson:"comment_count"`
	VerificationStatus string             `json:"verificationStatus" bson:"verification_status"`
	RejectionReason    string             `json:"rejectionReason,omitempty" bson:"rejection_reason,omitempty"`
	IsVisible          bool               `json:"isVisible" bson:"is_visible"`
	TaggedUserIDs      []string           `json:"taggedUserIds" bson:"tagged_user_ids"`
}

// Has reports whether uid is in the given membership list.
func Has(list []string, uid string) bool {
	for _, v := range list {
		if v == uid {
			return true
		}
	}
	return false
}

// CreatePostRequest is the non-file part of the multipart create-post form.
type CreatePostRequest struct {
	Title         string   `form:"title" validate:"required,min=1,max=120"`
	Caption       string   `form:"caption" validate:"required,min=1,max=1000"`
	Tags          []string `form:"tags" validate:"max=3,dive,min=1,max=30"`
	DurationHours int      `form:"duration" validate:"required,min=1,max=24"`
	IsAnonymous   bool     `form:"isAnonymous"`
	Latitude      float64  `form:"lat" validate:"latitude"`
	Longitude     float64  `form:"lng" validate:"longitude"`
	TaggedUserIDs []string `form:"taggedUserIds" validate:"max=20"`
}

// NearbyQuery selects the visible feed around a point.
type NearbyQuery struct {
	Latitude  float64 `query:"lat" validate:"latitude"`
	Longitude float64 `query:"lng" validate:"longitude"`
	RadiusKm  float64 `query:"radius" validate:"omitempty,gt=0,lte=200"`
	Limit     int64   `query:"limit" validate:"omitempty,min=1,max=100"`
}
