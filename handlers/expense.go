package handlers

import (
	"fmt"
	"net/http"
	"splitshare-backend/database"
	"splitshare-backend/models"
	"splitshare-backend/services"
	"splitshare-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// POST /api/groups/:id/expenses
func CreateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !groupExists(groupID) {
		utils.NotFound(c, "Group not found")
		return
	}
	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	category := req.Category
	if category == "" {
		category = models.CategoryOther
	}

	splits, err := validateSplits(groupID, req.Amount, req.Splits)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expense := models.Expense{
		GroupID:     groupID,
		PaidBy:      userID,
		Amount:      req.Amount,
		Category:    category,
		Description: req.Description,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}
		for i := range splits {
			splits[i].ExpenseID = expense.ID
			if err := tx.Create(&splits[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.InternalError(c, "Failed to create expense")
		return
	}

	var payer models.User
	database.DB.First(&payer, "id = ?", userID)
	var group models.Group
	database.DB.First(&group, "id = ?", groupID)

	expense.Splits = splits
	go services.GetNotificationService().NotifyExpenseAdded(expense, payer, group)

	response := loadExpenseResponse(expense.ID)
	utils.SuccessResponse(c, http.StatusCreated, "Expense added", response)
}

// GET /api/groups/:id/expenses
func GetGroupExpenses(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !groupExists(groupID) {
		utils.NotFound(c, "Group not found")
		return
	}
	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var expenses []models.Expense
	database.DB.Preload("Payer").Preload("Splits.User").
		Where("group_id = ?", groupID).
		Order("updated_at DESC").
		Find(&expenses)

	responses := make([]models.ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		responses = append(responses, services.BuildExpenseResponse(e))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/groups/:id/expenses/me — the caller's position inside one group,
// used for the settle-up review screen.
func GetUserGroupExpenses(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	var group models.Group
	if err := database.DB.First(&group, "id = ?", groupID).Error; err != nil {
		utils.NotFound(c, "Group not found")
		return
	}
	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var expenses []models.Expense
	database.DB.Preload("Payer").Preload("Splits.User").
		Where("group_id = ?", groupID).
		Where("paid_by = ? OR id IN (?)", userID,
			database.DB.Model(&models.ExpenseSplit{}).Select("expense_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&expenses)

	summary := models.GroupBalanceSummary{
		GroupID:      groupID,
		GroupName:    group.Name,
		UserPosition: services.ComputeUserPosition(userID, expenses),
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/expenses — the caller's position across all of their active
// groups. Groups whose current settlement cycle is settled are left out;
// their history lives under /api/settleup/settled-groups.
func GetAllExpenses(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var memberships []models.GroupMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}

	activeIDs, err := services.GetSettlementService().ActiveGroupIDs(c.Request.Context(), groupIDs)
	if err != nil {
		utils.InternalError(c, "Failed to resolve active groups")
		return
	}

	var expenses []models.Expense
	if len(activeIDs) > 0 {
		database.DB.Preload("Payer").Preload("Splits.User").
			Where("group_id IN ?", activeIDs).
			Order("created_at DESC").
			Find(&expenses)
	}

	position := services.ComputeUserPosition(userID, expenses)

	// Attach group names for display
	groupNames := make(map[uuid.UUID]string)
	var groups []models.Group
	if len(activeIDs) > 0 {
		database.DB.Where("id IN ?", activeIDs).Find(&groups)
	}
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	for i := range position.Expenses {
		position.Expenses[i].GroupName = groupNames[position.Expenses[i].Expense.GroupID]
	}

	utils.SuccessResponse(c, http.StatusOK, "", position)
}

// PUT /api/expenses/:id — payer only
func UpdateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.Preload("Splits").First(&expense, "id = ?", expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if expense.PaidBy != userID {
		utils.Forbidden(c, "You are not the owner of this expense")
		return
	}

	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	amount := expense.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}

	// Validate replacement splits against live membership before any write
	var newSplits []models.ExpenseSplit
	if req.Splits != nil {
		newSplits, err = validateSplits(expense.GroupID, amount, req.Splits)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
	} else if req.Amount != nil {
		var current float64
		for _, s := range expense.Splits {
			current += s.Share
		}
		if len(expense.Splits) > 0 && utils.RoundToTwo(current) != utils.RoundToTwo(amount) {
			utils.BadRequest(c, fmt.Sprintf("split shares (%.2f) don't add up to amount (%.2f)", current, amount))
			return
		}
	}

	updates := map[string]interface{}{}
	if req.Amount != nil {
		updates["amount"] = amount
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&expense).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Splits != nil {
			if err := tx.Where("expense_id = ?", expenseID).Delete(&models.ExpenseSplit{}).Error; err != nil {
				return err
			}
			for i := range newSplits {
				newSplits[i].ExpenseID = expenseID
				if err := tx.Create(&newSplits[i]).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		utils.InternalError(c, "Failed to update expense")
		return
	}

	response := loadExpenseResponse(expenseID)
	utils.SuccessResponse(c, http.StatusOK, "Expense updated", response)
}

// DELETE /api/expenses/:id — payer only
func DeleteExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, "id = ?", expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if expense.PaidBy != userID {
		utils.Forbidden(c, "You are not the owner of this expense")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", expenseID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&expense).Error
	})
	if err != nil {
		utils.InternalError(c, "Failed to delete expense")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}

// validateSplits checks every split against the group's current member set,
// rejects duplicate members, and requires the shares to add up to the expense
// amount to the cent. Nothing is written on failure.
func validateSplits(groupID uuid.UUID, amount float64, inputs []models.SplitInput) ([]models.ExpenseSplit, error) {
	var members []models.GroupMember
	database.DB.Where("group_id = ?", groupID).Find(&members)

	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberSet[m.UserID] = true
	}

	splits := make([]models.ExpenseSplit, 0, len(inputs))
	seen := make(map[uuid.UUID]bool, len(inputs))
	var total float64

	for _, in := range inputs {
		memberID, err := uuid.Parse(in.Member)
		if err != nil {
			return nil, fmt.Errorf("invalid member ID: %s", in.Member)
		}
		if !memberSet[memberID] {
			return nil, fmt.Errorf("user %s does not exist in the group", in.Member)
		}
		if seen[memberID] {
			return nil, fmt.Errorf("duplicate split for user %s", in.Member)
		}
		if in.Share < 0 {
			return nil, fmt.Errorf("split share must not be negative")
		}
		seen[memberID] = true

		// Shares persist at cent precision, so the sum check must see the
		// rounded values, not the raw input.
		share := utils.RoundToTwo(in.Share)
		total += share

		splits = append(splits, models.ExpenseSplit{
			UserID: memberID,
			Share:  share,
		})
	}

	if len(splits) > 0 && utils.RoundToTwo(total) != utils.RoundToTwo(amount) {
		return nil, fmt.Errorf("split shares (%.2f) don't add up to amount (%.2f)", total, amount)
	}

	return splits, nil
}

// loadExpenseResponse reloads an expense with its associations for API output.
func loadExpenseResponse(expenseID uuid.UUID) models.ExpenseResponse {
	var expense models.Expense
	if err := database.DB.Preload("Payer").Preload("Splits.User").
		First(&expense, "id = ?", expenseID).Error; err != nil {
		return models.ExpenseResponse{}
	}
	return services.BuildExpenseResponse(expense)
}
