package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"splitshare-backend/database"
	"splitshare-backend/models"
	"splitshare-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrGroupNotFound is returned when a settlement operation references a group
// that does not exist.
var ErrGroupNotFound = errors.New("group not found")

const settledCacheTTL = 10 * time.Minute

// SettlementService drives the per-group settlement cycle:
//
//	no cycle -> open (confirmations accumulate) -> settled (immutable)
//
// A confirmation arriving after a group is settled opens a fresh cycle; the
// settled record stays behind as history and is never mutated again.
type SettlementService struct {
	locks sync.Map // group ID -> *sync.Mutex
}

var settlementService = &SettlementService{}

func GetSettlementService() *SettlementService {
	return settlementService
}

// lockGroup serializes confirmations per group so concurrent calls cannot
// both create a live cycle.
func (ss *SettlementService) lockGroup(groupID uuid.UUID) func() {
	v, _ := ss.locks.LoadOrStore(groupID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Confirm records userID's settlement confirmation on the group's live cycle,
// creating the cycle if none is open. Re-confirming is a no-op. When every
// current member has confirmed, the cycle is frozen as settled. Returns the
// cycle and whether the group is now fully settled.
func (ss *SettlementService) Confirm(groupID, userID uuid.UUID) (*models.SettleUp, bool, error) {
	unlock := ss.lockGroup(groupID)
	defer unlock()

	var cycle models.SettleUp
	var allSettled bool

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		var members []models.GroupMember
		if err := tx.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
			return err
		}

		err := tx.Preload("Confirmations").
			Where("group_id = ? AND is_settled = ?", groupID, false).
			First(&cycle).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cycle = models.SettleUp{GroupID: groupID}
			if err := tx.Create(&cycle).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if !cycle.HasConfirmed(userID) {
			confirmation := models.SettleUpConfirmation{SettleUpID: cycle.ID, UserID: userID}
			if err := tx.Create(&confirmation).Error; err != nil {
				return err
			}
			cycle.Confirmations = append(cycle.Confirmations, confirmation)
		}

		// Coverage is evaluated against the membership set as it is right
		// now, not as it was when the cycle opened.
		allSettled = membersCovered(members, &cycle)
		if allSettled && !cycle.IsSettled {
			if err := tx.Model(&cycle).Update("is_settled", true).Error; err != nil {
				return err
			}
			cycle.IsSettled = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	ss.invalidateSettledCache(groupID)
	return &cycle, allSettled, nil
}

// Reconcile re-evaluates the live cycle against the current member set.
// Removing a member can complete coverage without a new confirmation; the
// cycle must still freeze so every status path agrees the group is settled.
func (ss *SettlementService) Reconcile(groupID uuid.UUID) error {
	unlock := ss.lockGroup(groupID)
	defer unlock()

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var members []models.GroupMember
		if err := tx.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
			return err
		}

		var cycle models.SettleUp
		err := tx.Preload("Confirmations").
			Where("group_id = ? AND is_settled = ?", groupID, false).
			First(&cycle).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if membersCovered(members, &cycle) {
			return tx.Model(&cycle).Update("is_settled", true).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	ss.invalidateSettledCache(groupID)
	return nil
}

// Status reports whether userID has confirmed the group's current cycle and
// whether the group is fully settled. With a live cycle open, allSettled is
// recomputed from the live membership rather than read from the stale flag.
// With no live cycle, the latest settled record answers for both.
func (ss *SettlementService) Status(groupID, userID uuid.UUID) (models.SettleStatusResponse, error) {
	status := models.SettleStatusResponse{}

	var group models.Group
	if err := database.DB.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return status, ErrGroupNotFound
		}
		return status, err
	}

	var live models.SettleUp
	err := database.DB.Preload("Confirmations").
		Where("group_id = ? AND is_settled = ?", groupID, false).
		First(&live).Error
	if err == nil {
		var members []models.GroupMember
		if err := database.DB.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
			return status, err
		}
		status.UserSettled = live.HasConfirmed(userID)
		status.AllSettled = membersCovered(members, &live)
		return status, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return status, err
	}

	var last models.SettleUp
	err = database.DB.Preload("Confirmations").
		Where("group_id = ? AND is_settled = ?", groupID, true).
		Order("updated_at DESC").
		First(&last).Error
	if err == nil {
		status.UserSettled = last.HasConfirmed(userID)
		status.AllSettled = true
		return status, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return status, err
	}

	return status, nil
}

// MultiStatus reports, per group, whether the group is currently settled:
// a settled cycle exists and no new cycle has been opened since. Results are
// cached in Redis and invalidated on Confirm.
func (ss *SettlementService) MultiStatus(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	status := make(map[uuid.UUID]bool, len(groupIDs))

	var misses []uuid.UUID
	for _, id := range groupIDs {
		if cached, ok := ss.settledFromCache(ctx, id); ok {
			status[id] = cached
		} else {
			misses = append(misses, id)
		}
	}

	for _, id := range misses {
		var settledCount, liveCount int64
		if err := database.DB.Model(&models.SettleUp{}).
			Where("group_id = ? AND is_settled = ?", id, true).
			Count(&settledCount).Error; err != nil {
			return nil, err
		}
		if err := database.DB.Model(&models.SettleUp{}).
			Where("group_id = ? AND is_settled = ?", id, false).
			Count(&liveCount).Error; err != nil {
			return nil, err
		}

		settled := settledCount > 0 && liveCount == 0
		status[id] = settled
		ss.cacheSettled(ctx, id, settled)
	}

	return status, nil
}

// SettledGroups returns the settlement history for every group the user
// belongs to: one summary per settled cycle, newest first. Groups with zero
// expenses report a zero total.
func (ss *SettlementService) SettledGroups(userID uuid.UUID) ([]models.SettledGroupSummary, error) {
	var memberships []models.GroupMember
	if err := database.DB.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}
	if len(groupIDs) == 0 {
		return []models.SettledGroupSummary{}, nil
	}

	var records []models.SettleUp
	if err := database.DB.Preload("Confirmations").
		Where("group_id IN ? AND is_settled = ?", groupIDs, true).
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.SettledGroupSummary, 0, len(records))
	for _, rec := range records {
		var group models.Group
		if err := database.DB.Preload("Members.User").First(&group, "id = ?", rec.GroupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue // group deleted since; history record is orphaned
			}
			return nil, err
		}

		var expenses []models.Expense
		if err := database.DB.Preload("Payer").Preload("Splits.User").
			Where("group_id = ?", rec.GroupID).
			Order("created_at DESC").
			Find(&expenses).Error; err != nil {
			return nil, err
		}

		var total float64
		expenseResponses := make([]models.ExpenseResponse, 0, len(expenses))
		for _, exp := range expenses {
			total += exp.Amount
			expenseResponses = append(expenseResponses, BuildExpenseResponse(exp))
		}

		members := make([]models.UserResponse, 0, len(group.Members))
		for _, m := range group.Members {
			members = append(members, m.User.ToResponse())
		}

		summaries = append(summaries, models.SettledGroupSummary{
			GroupID:          group.ID,
			GroupName:        group.Name,
			GroupDescription: group.Description,
			Members:          members,
			SettledAt:        rec.UpdatedAt,
			SettledBy:        rec.SettledBy(),
			TotalAmount:      utils.RoundToTwo(total),
			ExpenseCount:     len(expenses),
			Expenses:         expenseResponses,
		})
	}

	return summaries, nil
}

// ActiveGroupIDs filters the given groups down to those whose current
// settlement cycle is not settled, for the cross-group balance view.
func (ss *SettlementService) ActiveGroupIDs(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	status, err := ss.MultiStatus(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	active := make([]uuid.UUID, 0, len(groupIDs))
	for _, id := range groupIDs {
		if !status[id] {
			active = append(active, id)
		}
	}
	return active, nil
}

func membersCovered(members []models.GroupMember, cycle *models.SettleUp) bool {
	for _, m := range members {
		if !cycle.HasConfirmed(m.UserID) {
			return false
		}
	}
	return len(members) > 0
}

func settledCacheKey(groupID uuid.UUID) string {
	return fmt.Sprintf("settleup:settled:%s", groupID)
}

func (ss *SettlementService) settledFromCache(ctx context.Context, groupID uuid.UUID) (bool, bool) {
	if database.Redis == nil {
		return false, false
	}
	val, err := database.Redis.Get(ctx, settledCacheKey(groupID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (ss *SettlementService) cacheSettled(ctx context.Context, groupID uuid.UUID, settled bool) {
	if database.Redis == nil {
		return
	}
	val := "0"
	if settled {
		val = "1"
	}
	database.Redis.Set(ctx, settledCacheKey(groupID), val, settledCacheTTL)
}

func (ss *SettlementService) invalidateSettledCache(groupID uuid.UUID) {
	if database.Redis == nil {
		return
	}
	database.Redis.Del(context.Background(), settledCacheKey(groupID))
}
