package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Expense categories accepted by the API. Anything else is rejected at bind
// time; an empty category falls back to CategoryOther.
const (
	CategoryFood          = "food"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryUtilities     = "utilities"
	CategoryShopping      = "shopping"
	CategoryHealth        = "health"
	CategoryEducation     = "education"
	CategoryOther         = "other"
)

type Expense struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID      `gorm:"type:uuid;index" json:"group_id"`
	Group       Group          `gorm:"foreignKey:GroupID" json:"-"`
	PaidBy      uuid.UUID      `gorm:"type:uuid" json:"paid_by"`
	Payer       User           `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	Amount      float64        `gorm:"type:decimal(12,2);not null" json:"amount"`
	Category    string         `gorm:"default:other;size:20" json:"category"`
	Description string         `gorm:"not null;size:200" json:"description"`
	Splits      []ExpenseSplit `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExpenseSplit records how much of an expense a single member is responsible
// for. The payer's own split is stored like any other but is never counted as
// receivable.
type ExpenseSplit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID uuid.UUID `gorm:"type:uuid;index" json:"expense_id"`
	UserID    uuid.UUID `gorm:"type:uuid" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Share     float64   `gorm:"type:decimal(12,2);not null" json:"share"`
	CreatedAt time.Time `json:"created_at"`
}

func (es *ExpenseSplit) BeforeCreate(tx *gorm.DB) error {
	if es.ID == uuid.Nil {
		es.ID = uuid.New()
	}
	return nil
}

// Request structs
type CreateExpenseRequest struct {
	Amount      float64      `json:"amount" binding:"gte=0"`
	Category    string       `json:"category" binding:"omitempty,oneof=food transport entertainment utilities shopping health education other"`
	Description string       `json:"description" binding:"required,max=200"`
	Splits      []SplitInput `json:"splits"`
}

type UpdateExpenseRequest struct {
	Amount      *float64     `json:"amount" binding:"omitempty,gte=0"`
	Category    string       `json:"category" binding:"omitempty,oneof=food transport entertainment utilities shopping health education other"`
	Description string       `json:"description" binding:"omitempty,max=200"`
	Splits      []SplitInput `json:"splits"`
}

type SplitInput struct {
	Member string  `json:"member" binding:"required"`
	Share  float64 `json:"share" binding:"gte=0"`
}

// Response
type ExpenseResponse struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"group_id"`
	PaidBy      uuid.UUID       `json:"paid_by"`
	PayerName   string          `json:"payer_name"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Splits      []SplitResponse `json:"splits"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SplitResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Share    float64   `json:"share"`
}
