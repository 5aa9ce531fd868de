package services

import (
	"log"
	"splitshare-backend/database"
	"splitshare-backend/models"

	"github.com/google/uuid"
)

// InviteToGroup creates a pending invitation for an unregistered email and
// sends the invite mail. If the email already belongs to a user, they are
// added to the group directly.
func InviteToGroup(groupID uuid.UUID, invitedBy uuid.UUID, email string) {
	var existing models.Invitation
	err := database.DB.Where("group_id = ? AND email = ? AND status = ?", groupID, email, "pending").
		First(&existing).Error
	if err == nil {
		log.Printf("⚠️  Invitation already exists for %s in group %s", email, groupID)
		return
	}

	var existingUser models.User
	if err := database.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		var existingMember models.GroupMember
		if err := database.DB.Where("group_id = ? AND user_id = ?", groupID, existingUser.ID).First(&existingMember).Error; err != nil {
			database.DB.Create(&models.GroupMember{
				GroupID: groupID,
				UserID:  existingUser.ID,
				Role:    "member",
			})
			log.Printf("✅ Added existing user %s to group %s", email, groupID)
		}
		return
	}

	invitation := models.Invitation{
		GroupID:   groupID,
		InvitedBy: invitedBy,
		Email:     email,
		Status:    "pending",
	}

	if err := database.DB.Create(&invitation).Error; err != nil {
		log.Printf("❌ Failed to create invitation: %v", err)
		return
	}

	var inviter models.User
	database.DB.First(&inviter, "id = ?", invitedBy)
	var group models.Group
	database.DB.First(&group, "id = ?", groupID)

	GetNotificationService().NotifyInvitation(email, inviter.Username, group.Name)

	log.Printf("✅ Invitation sent to %s for group %s", email, groupID)
}
