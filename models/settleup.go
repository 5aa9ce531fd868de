package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettleUp is one settlement cycle for a group. At most one record with
// IsSettled=false exists per group (the live cycle); records with
// IsSettled=true are immutable history.
type SettleUp struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID       uuid.UUID              `gorm:"type:uuid;index" json:"group_id"`
	Group         Group                  `gorm:"foreignKey:GroupID" json:"-"`
	IsSettled     bool                   `gorm:"default:false;index" json:"is_settled"`
	Confirmations []SettleUpConfirmation `gorm:"foreignKey:SettleUpID" json:"settled_by,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func (s *SettleUp) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SettledBy returns the set of users who have confirmed this cycle.
func (s *SettleUp) SettledBy() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Confirmations))
	for _, c := range s.Confirmations {
		ids = append(ids, c.UserID)
	}
	return ids
}

// HasConfirmed reports whether the given user confirmed this cycle.
func (s *SettleUp) HasConfirmed(userID uuid.UUID) bool {
	for _, c := range s.Confirmations {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// SettleUpConfirmation is one member's confirmation inside a cycle.
// Re-confirming is a no-op thanks to the composite primary key.
type SettleUpConfirmation struct {
	SettleUpID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"settle_up_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ConfirmedAt time.Time `gorm:"autoCreateTime" json:"confirmed_at"`
}

// Request structs
type MultiStatusRequest struct {
	GroupIDs []string `json:"group_ids" binding:"required"`
}

// Response structs
type SettleUpResponse struct {
	ID        uuid.UUID   `json:"id"`
	GroupID   uuid.UUID   `json:"group_id"`
	SettledBy []uuid.UUID `json:"settled_by"`
	IsSettled bool        `json:"is_settled"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (s *SettleUp) ToResponse() SettleUpResponse {
	return SettleUpResponse{
		ID:        s.ID,
		GroupID:   s.GroupID,
		SettledBy: s.SettledBy(),
		IsSettled: s.IsSettled,
		UpdatedAt: s.UpdatedAt,
	}
}

type SettleStatusResponse struct {
	UserSettled bool `json:"user_settled"`
	AllSettled  bool `json:"all_settled"`
}

// SettledGroupSummary is one entry of GET /api/settleup/settled-groups.
type SettledGroupSummary struct {
	GroupID          uuid.UUID         `json:"group_id"`
	GroupName        string            `json:"group_name"`
	GroupDescription string            `json:"group_description,omitempty"`
	Members          []UserResponse    `json:"members"`
	SettledAt        time.Time         `json:"settled_at"`
	SettledBy        []uuid.UUID       `json:"settled_by"`
	TotalAmount      float64           `json:"total_amount"`
	ExpenseCount     int               `json:"expense_count"`
	Expenses         []ExpenseResponse `json:"expenses"`
}
