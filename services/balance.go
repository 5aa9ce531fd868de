package services

import (
	"splitshare-backend/models"
	"splitshare-backend/utils"

	"github.com/google/uuid"
)

// ComputeUserPosition computes a user's net position over a set of expenses.
//
// For an expense the user paid for, the user receives the sum of every other
// member's share; their own share is excluded since they already fronted it.
// For an expense paid by someone else, the user pays exactly their split's
// share, or nothing if they have no split. Each expense is annotated with the
// caller's role and contribution so callers can render an itemized view.
//
// Pure over the provided snapshot: no I/O, deterministic for a given input.
// Expenses are expected with Payer and Splits.User preloaded.
func ComputeUserPosition(userID uuid.UUID, expenses []models.Expense) models.UserPosition {
	position := models.UserPosition{
		Expenses: make([]models.ExpensePosition, 0, len(expenses)),
	}

	for _, exp := range expenses {
		entry := models.ExpensePosition{
			Expense:  BuildExpenseResponse(exp),
			UserRole: models.RoleMember,
		}

		if exp.PaidBy == userID {
			entry.UserRole = models.RoleOwner
			for _, s := range exp.Splits {
				if s.UserID != userID {
					entry.UserReceives += s.Share
				}
			}
			position.TotalToReceive += entry.UserReceives
		} else {
			for _, s := range exp.Splits {
				if s.UserID == userID {
					entry.UserPays = s.Share
					break
				}
			}
			position.TotalToPay += entry.UserPays
		}

		entry.UserPays = utils.RoundToTwo(entry.UserPays)
		entry.UserReceives = utils.RoundToTwo(entry.UserReceives)
		position.Expenses = append(position.Expenses, entry)
	}

	position.TotalToPay = utils.RoundToTwo(position.TotalToPay)
	position.TotalToReceive = utils.RoundToTwo(position.TotalToReceive)
	return position
}

// BuildExpenseResponse shapes an expense (with preloaded associations) for
// API output without touching the database.
func BuildExpenseResponse(exp models.Expense) models.ExpenseResponse {
	splits := make([]models.SplitResponse, 0, len(exp.Splits))
	for _, s := range exp.Splits {
		splits = append(splits, models.SplitResponse{
			UserID:   s.UserID,
			Username: s.User.Username,
			Share:    s.Share,
		})
	}

	return models.ExpenseResponse{
		ID:          exp.ID,
		GroupID:     exp.GroupID,
		PaidBy:      exp.PaidBy,
		PayerName:   exp.Payer.Username,
		Amount:      exp.Amount,
		Category:    exp.Category,
		Description: exp.Description,
		Splits:      splits,
		CreatedAt:   exp.CreatedAt,
		UpdatedAt:   exp.UpdatedAt,
	}
}
