package models

import "github.com/google/uuid"

// Expense roles from the caller's point of view.
const (
	RoleOwner  = "owner"  // caller is the payer
	RoleMember = "member" // caller appears (or not) in the splits
)

// ExpensePosition is one expense annotated with the caller's contribution.
type ExpensePosition struct {
	Expense      ExpenseResponse `json:"expense"`
	GroupName    string          `json:"group_name,omitempty"`
	UserRole     string          `json:"user_role"`
	UserPays     float64         `json:"user_pays"`
	UserReceives float64         `json:"user_receives"`
}

// UserPosition is a user's net position over a set of expenses.
type UserPosition struct {
	TotalToPay     float64           `json:"total_to_pay"`
	TotalToReceive float64           `json:"total_to_receive"`
	Expenses       []ExpensePosition `json:"expenses"`
}

// GroupBalanceSummary is returned for GET /api/groups/:id/expenses/me.
type GroupBalanceSummary struct {
	GroupID   uuid.UUID `json:"group_id"`
	GroupName string    `json:"group_name"`
	UserPosition
}
