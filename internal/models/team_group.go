package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxGroupNameLength = 100

// TeamGroup is a named crew that registrations join. Each group owns one team number.
type TeamGroup struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Channel      float64            `bson:"channel" json:"channel"`
	Contact      string             `bson:"contact" json:"contact"`
	ContactEmail string             `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	ContactPhone string             `bson:"contact_phone,omitempty" json:"contact_phone,omitempty"`
	TeamNumber   int64              `bson:"team_number" json:"team_number"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// TeamGroupRequest is the admin payload for creating a group
type TeamGroupRequest struct {
	Name         string  `json:"name" binding:"required"`
	Channel      float64 `json:"channel" binding:"required"`
	Contact      string  `json:"contact" binding:"required"`
	ContactEmail string  `json:"contact_email,omitempty"`
	ContactPhone string  `json:"contact_phone,omitempty"`
}

// TeamGroupListResponse lists active groups
type TeamGroupListResponse struct {
	Groups []TeamGroup `json:"groups"`
	Total  int         `json:"total"`
}

// Assignment returns what a registration in this group is bound to
func (g *TeamGroup) Assignment() TeamAssignment {
	return TeamAssignment{
		GroupName:  g.Name,
		Channel:    g.Channel,
		Contact:    g.Contact,
		TeamNumber: g.TeamNumber,
	}
}

// ValidateName checks if the group name is valid
func (g *TeamGroup) ValidateName() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrInvalidGroupName
	}
	if len(name) > maxGroupNameLength {
		return ErrGroupNameTooLong
	}
	return nil
}

// BeforeCreate sets the creation and update timestamps
func (g *TeamGroup) BeforeCreate() {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
}
