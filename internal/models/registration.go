package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Crew roles, at most one holder of each per team
const (
	RolePilot      = "pilot"
	RoleCoPilot    = "co-pilot"
	RoleCompanion1 = "companion-1"
	RoleCompanion2 = "companion-2"
	RoleCompanion3 = "companion-3"
)

// Registration statuses
const (
	RegistrationStatusPending   = "pending"
	RegistrationStatusConfirmed = "confirmed"
	RegistrationStatusCancelled = "cancelled"
)

// Counter keys
const (
	RegistrationNumberCounter = "registrations.number"
	TeamNumberCounter         = "team_groups.team_number"
)

var (
	// Roles lists crew roles in display order
	Roles            = []string{RolePilot, RoleCoPilot, RoleCompanion1, RoleCompanion2, RoleCompanion3}
	ExperienceLevels = []string{"expert", "intermediate", "beginner"}
	BloodTypes       = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	VehicleTypes     = []string{"motorcycle", "quad", "utv", "sand-rail", "pickup"}
	ArrivalDays      = []string{"thursday", "friday", "saturday"}
	Statuses         = []string{RegistrationStatusPending, RegistrationStatusConfirmed, RegistrationStatusCancelled}
)

// RegistrationDraft is the submission held while its email is being verified
type RegistrationDraft struct {
	Role             string `bson:"role" json:"role" binding:"required"`
	GroupName        string `bson:"group_name" json:"group_name" binding:"required"`
	FirstNames       string `bson:"first_names" json:"first_names" binding:"required"`
	LastNames        string `bson:"last_names" json:"last_names" binding:"required"`
	Age              int    `bson:"age" json:"age" binding:"required"`
	Experience       string `bson:"experience" json:"experience" binding:"required"`
	BloodType        string `bson:"blood_type" json:"blood_type" binding:"required"`
	DocumentNumber   string `bson:"document_number" json:"document_number" binding:"required"`
	Email            string `bson:"email" json:"email"`
	Phone            string `bson:"phone" json:"phone" binding:"required"`
	EmergencyContact string `bson:"emergency_contact" json:"emergency_contact" binding:"required"`
	EmergencyPhone   string `bson:"emergency_phone,omitempty" json:"emergency_phone,omitempty"`
	VehicleType      string `bson:"vehicle_type" json:"vehicle_type" binding:"required"`
	VehicleBrand     string `bson:"vehicle_brand" json:"vehicle_brand" binding:"required"`
	VehicleModel     string `bson:"vehicle_model" json:"vehicle_model" binding:"required"`
	VehicleYear      int    `bson:"vehicle_year" json:"vehicle_year" binding:"required"`
	ArrivalDay       string `bson:"arrival_day" json:"arrival_day" binding:"required"`
	Notes            string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Normalize trims free-text fields and lowercases identifiers
func (d *RegistrationDraft) Normalize() {
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
	d.GroupName = strings.TrimSpace(d.GroupName)
	d.FirstNames = strings.TrimSpace(d.FirstNames)
	d.LastNames = strings.TrimSpace(d.LastNames)
	d.Experience = strings.ToLower(strings.TrimSpace(d.Experience))
	d.BloodType = strings.ToUpper(strings.TrimSpace(d.BloodType))
	d.DocumentNumber = strings.TrimSpace(d.DocumentNumber)
	d.Email = NormalizeEmail(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.EmergencyContact = strings.TrimSpace(d.EmergencyContact)
	d.EmergencyPhone = strings.TrimSpace(d.EmergencyPhone)
	d.VehicleType = strings.ToLower(strings.TrimSpace(d.VehicleType))
	d.VehicleBrand = strings.TrimSpace(d.VehicleBrand)
	d.VehicleModel = strings.TrimSpace(d.VehicleModel)
	d.ArrivalDay = strings.ToLower(strings.TrimSpace(d.ArrivalDay))
	d.Notes = strings.TrimSpace(d.Notes)
}

// NormalizeEmail is the canonical form used as pending-verification key and identity field
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TeamAssignment is what a group name resolves to at commit time
type TeamAssignment struct {
	GroupName  string  `json:"group_name"`
	Channel    float64 `json:"channel"`
	Contact    string  `json:"contact"`
	TeamNumber int64   `json:"team_number"`
}

// RegistrationRecord is a committed registration
type RegistrationRecord struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RegistrationDraft `bson:",inline"`
	Number            int64     `bson:"number" json:"number"`
	TeamNumber        int64     `bson:"team_number" json:"team_number"`
	Channel           float64   `bson:"channel" json:"channel"`
	GroupContact      string    `bson:"group_contact" json:"group_contact"`
	Status            string    `bson:"status" json:"status"`
	Active            bool      `bson:"active" json:"active"`
	RegisteredAt      time.Time `bson:"registered_at" json:"registered_at"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// NewRegistrationRecord builds a record from a verified draft. Channel and contact are
// copied from the team so later group edits do not touch committed records.
func NewRegistrationRecord(draft RegistrationDraft, team TeamAssignment, number int64, now time.Time) *RegistrationRecord {
	draft.GroupName = team.GroupName
	return &RegistrationRecord{
		RegistrationDraft: draft,
		Number:            number,
		TeamNumber:        team.TeamNumber,
		Channel:           team.Channel,
		GroupContact:      team.Contact,
		Status:            RegistrationStatusPending,
		Active:            true,
		RegisteredAt:      now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// FullName returns first and last names joined
func (r *RegistrationRecord) FullName() string {
	return strings.TrimSpace(r.FirstNames + " " + r.LastNames)
}

// RoleRank orders roles for team listings
func RoleRank(role string) int {
	for i, r := range Roles {
		if r == role {
			return i
		}
	}
	return len(Roles)
}

// RegistrationFilter narrows registration listings
type RegistrationFilter struct {
	Role        string
	Status      string
	Group       string
	VehicleType string
	ArrivalDay  string
	Experience  string
	TeamNumber  int64
	Search      string
	Page        int
	PerPage     int
}

// PaginationInfo represents pagination metadata
type PaginationInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// RegistrationListResponse is a page of registrations
type RegistrationListResponse struct {
	Registrations []RegistrationRecord `json:"registrations"`
	Pagination    PaginationInfo       `json:"pagination"`
}

// TeamResponse lists the active members of one team
type TeamResponse struct {
	TeamNumber   int64                `json:"team_number"`
	GroupName    string               `json:"group_name"`
	Channel      float64              `json:"channel"`
	GroupContact string               `json:"group_contact"`
	Members      []RegistrationRecord `json:"members"`
	TotalMembers int                  `json:"total_members"`
}

// RegistrationStats aggregates active registrations
type RegistrationStats struct {
	Total         int64            `json:"total"`
	TotalTeams    int64            `json:"total_teams"`
	LastSevenDays int64            `json:"last_seven_days"`
	ByRole        map[string]int64 `json:"by_role"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByVehicleType map[string]int64 `json:"by_vehicle_type"`
	ByExperience  map[string]int64 `json:"by_experience"`
	ByArrivalDay  map[string]int64 `json:"by_arrival_day"`
	ByGroup       map[string]int64 `json:"by_group"`
}
