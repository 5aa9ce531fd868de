package handlers

import (
	"errors"
	"net/http"
	"splitshare-backend/database"
	"splitshare-backend/models"
	"splitshare-backend/services"
	"splitshare-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConfirmSettlementResponse struct {
	SettleUp   models.SettleUpResponse `json:"settle_up"`
	AllSettled bool                    `json:"all_settled"`
}

// POST /api/groups/:id/settleup — the caller confirms settlement for
// themselves on the group's current cycle.
func ConfirmSettlement(c *gin.Context) {
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

	cycle, allSettled, err := services.GetSettlementService().Confirm(groupID, userID)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			utils.NotFound(c, "Group not found")
			return
		}
		utils.InternalError(c, "Failed to confirm settlement")
		return
	}

	if allSettled {
		var group models.Group
		database.DB.First(&group, "id = ?", groupID)
		var members []models.GroupMember
		database.DB.Where("group_id = ?", groupID).Find(&members)
		go services.GetNotificationService().NotifyGroupSettled(group, members)
	}

	utils.SuccessResponse(c, http.StatusOK, "", ConfirmSettlementResponse{
		SettleUp:   cycle.ToResponse(),
		AllSettled: allSettled,
	})
}

// GET /api/groups/:id/settleup/status
func GetSettlementStatus(c *gin.Context) {
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

	status, err := services.GetSettlementService().Status(groupID, userID)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			utils.NotFound(c, "Group not found")
			return
		}
		utils.InternalError(c, "Failed to read settlement status")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", status)
}

// POST /api/settleup/multi-status — batch settled check for many groups
func GetMultiSettlementStatus(c *gin.Context) {
	var req models.MultiStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	groupIDs := make([]uuid.UUID, 0, len(req.GroupIDs))
	for _, raw := range req.GroupIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid group ID: "+raw)
			return
		}
		groupIDs = append(groupIDs, id)
	}

	status, err := services.GetSettlementService().MultiStatus(c.Request.Context(), groupIDs)
	if err != nil {
		utils.InternalError(c, "Failed to read settlement status")
		return
	}

	// JSON keys must be strings
	out := make(map[string]bool, len(status))
	for id, settled := range status {
		out[id.String()] = settled
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"status": out})
}

// GET /api/settleup/settled-groups — settlement history for the caller
func GetSettledGroups(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	summaries, err := services.GetSettlementService().SettledGroups(userID)
	if err != nil {
		utils.InternalError(c, "Failed to load settled groups")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"settled_groups": summaries})
}
