package handlers

import (
	"fmt"
	"log"
	"net/http"
	"splitshare-backend/database"
	"splitshare-backend/models"
	"splitshare-backend/services"
	"splitshare-backend/utils"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// POST /api/groups
func CreateGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var memberIDs []uuid.UUID
	var inviteEmails []string
	for _, m := range req.Members {
		if id, err := uuid.Parse(m); err == nil {
			if id != userID {
				memberIDs = append(memberIDs, id)
			}
			continue
		}
		if strings.Contains(m, "@") {
			inviteEmails = append(inviteEmails, m)
			continue
		}
		utils.BadRequest(c, fmt.Sprintf("Invalid member reference: %s", m))
		return
	}

	// All referenced users must exist before anything is written
	if len(memberIDs) > 0 {
		var count int64
		database.DB.Model(&models.User{}).Where("id IN ?", memberIDs).Count(&count)
		if count != int64(len(memberIDs)) {
			utils.BadRequest(c, "Some members do not exist")
			return
		}
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		// Creator is always a member and cannot be removed later
		if err := tx.Create(&models.GroupMember{
			GroupID: group.ID,
			UserID:  userID,
			Role:    "admin",
		}).Error; err != nil {
			return err
		}
		for _, id := range memberIDs {
			if err := tx.Create(&models.GroupMember{
				GroupID: group.ID,
				UserID:  id,
				Role:    "member",
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.InternalError(c, "Failed to create group")
		return
	}

	for _, email := range inviteEmails {
		go services.InviteToGroup(group.ID, userID, email)
	}

	response := buildGroupResponse(group.ID)
	utils.SuccessResponse(c, http.StatusCreated, "Group created", response)
}

// GET /api/groups
func GetGroups(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var memberships []models.GroupMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	var groupIDs []uuid.UUID
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}

	var groups []models.Group
	if len(groupIDs) > 0 {
		database.DB.Where("id IN ?", groupIDs).Order("created_at DESC").Find(&groups)
	}

	responses := make([]models.GroupResponse, 0, len(groups))
	for _, g := range groups {
		responses = append(responses, buildGroupResponse(g.ID))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/groups/:id
func GetGroup(c *gin.Context) {
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

	response := buildGroupResponse(groupID)
	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// PUT /api/groups/:id — creator only
func UpdateGroup(c *gin.Context) {
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
	if group.CreatedBy != userID {
		utils.Forbidden(c, "Only the group creator can edit the group")
		return
	}

	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		database.DB.Model(&group).Updates(updates)
	}

	response := buildGroupResponse(groupID)
	utils.SuccessResponse(c, http.StatusOK, "Group updated", response)
}

// DELETE /api/groups/:id — creator only; removes the group's expenses,
// settlement history and memberships so no dangling cycle survives.
func DeleteGroup(c *gin.Context) {
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
	if group.CreatedBy != userID {
		utils.Forbidden(c, "Only the group creator can delete the group")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var expenseIDs []uuid.UUID
		if err := tx.Model(&models.Expense{}).Where("group_id = ?", groupID).Pluck("id", &expenseIDs).Error; err != nil {
			return err
		}
		if len(expenseIDs) > 0 {
			if err := tx.Where("expense_id IN ?", expenseIDs).Delete(&models.ExpenseSplit{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Expense{}).Error; err != nil {
			return err
		}

		var settleUpIDs []uuid.UUID
		if err := tx.Model(&models.SettleUp{}).Where("group_id = ?", groupID).Pluck("id", &settleUpIDs).Error; err != nil {
			return err
		}
		if len(settleUpIDs) > 0 {
			if err := tx.Where("settle_up_id IN ?", settleUpIDs).Delete(&models.SettleUpConfirmation{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.SettleUp{}).Error; err != nil {
			return err
		}

		if err := tx.Where("group_id = ?", groupID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		utils.InternalError(c, "Failed to delete group")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Group deleted", nil)
}

// POST /api/groups/:id/members — creator only
func AddMembers(c *gin.Context) {
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
	if group.CreatedBy != userID {
		utils.Forbidden(c, "Only the group creator can add members")
		return
	}

	var req models.MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	memberIDs, ok := parseMemberIDs(c, req.Members)
	if !ok {
		return
	}

	var count int64
	database.DB.Model(&models.User{}).Where("id IN ?", memberIDs).Count(&count)
	if count != int64(len(memberIDs)) {
		utils.BadRequest(c, "Some members do not exist")
		return
	}

	var alreadyAdded []string
	for _, id := range memberIDs {
		if isMember(groupID, id) {
			alreadyAdded = append(alreadyAdded, id.String())
		}
	}
	if len(alreadyAdded) > 0 {
		utils.BadRequest(c, "User(s) already added: "+strings.Join(alreadyAdded, ", "))
		return
	}

	var adder models.User
	database.DB.First(&adder, "id = ?", userID)

	for _, id := range memberIDs {
		database.DB.Create(&models.GroupMember{
			GroupID: groupID,
			UserID:  id,
			Role:    "member",
		})

		var newMember models.User
		if err := database.DB.First(&newMember, "id = ?", id).Error; err == nil {
			go services.GetNotificationService().NotifyMemberAdded(group, adder, newMember)
		}
	}

	response := buildGroupResponse(groupID)
	utils.SuccessResponse(c, http.StatusOK, "Members added", response)
}

// POST /api/groups/:id/members/remove — creator only; creator is not removable
func RemoveMembers(c *gin.Context) {
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
	if group.CreatedBy != userID {
		utils.Forbidden(c, "Only the group creator can remove members")
		return
	}

	var req models.MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	memberIDs, ok := parseMemberIDs(c, req.Members)
	if !ok {
		return
	}

	for _, id := range memberIDs {
		if id == group.CreatedBy {
			utils.BadRequest(c, "Cannot remove the group creator")
			return
		}
		if !isMember(groupID, id) {
			utils.BadRequest(c, "Members do not exist in the group")
			return
		}
	}

	database.DB.Where("group_id = ? AND user_id IN ?", groupID, memberIDs).Delete(&models.GroupMember{})

	// Shrinking the member set can complete the live settlement cycle
	if err := services.GetSettlementService().Reconcile(groupID); err != nil {
		log.Printf("⚠️  Failed to reconcile settlement after member removal: %v", err)
	}

	response := buildGroupResponse(groupID)
	utils.SuccessResponse(c, http.StatusOK, "Members removed", response)
}

// POST /api/groups/:id/invite
func InviteToGroupHandler(c *gin.Context) {
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

	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	go services.InviteToGroup(groupID, userID, req.Email)

	utils.SuccessResponse(c, http.StatusOK, "Invitation sent", nil)
}

func parseMemberIDs(c *gin.Context, members []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			utils.BadRequest(c, fmt.Sprintf("Invalid user ID: %s", m))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Helper: check group existence
func groupExists(groupID uuid.UUID) bool {
	var count int64
	database.DB.Model(&models.Group{}).Where("id = ?", groupID).Count(&count)
	return count > 0
}

// Helper: check group membership
func isMember(groupID, userID uuid.UUID) bool {
	var count int64
	database.DB.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&count)
	return count > 0
}

// Helper: build full group response with members
func buildGroupResponse(groupID uuid.UUID) models.GroupResponse {
	var group models.Group
	database.DB.First(&group, "id = ?", groupID)

	var members []models.GroupMember
	database.DB.Preload("User").Where("group_id = ?", groupID).Find(&members)

	memberResponses := make([]models.GroupMemberResponse, 0, len(members))
	for _, m := range members {
		memberResponses = append(memberResponses, models.GroupMemberResponse{
			UserID:   m.UserID,
			Username: m.User.Username,
			Email:    m.User.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	return models.GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		CreatedBy:   group.CreatedBy,
		Members:     memberResponses,
		CreatedAt:   group.CreatedAt,
	}
}
