package handlers

import (
	"net/http"
	"testing"

	"splitshare-backend/models"

	"github.com/google/uuid"
)

func TestSettleUpFlow(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, tokenB := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)
	path := "/api/groups/" + group.ID.String() + "/settleup"

	w := performRequest(t, r, http.MethodPost, path, tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm A: status = %d (body: %s)", w.Code, w.Body.String())
	}
	var first ConfirmSettlementResponse
	decodeData(t, w, &first)
	if first.AllSettled {
		t.Error("all_settled = true after one of two confirmations")
	}
	if len(first.SettleUp.SettledBy) != 1 || first.SettleUp.SettledBy[0] != alice.ID {
		t.Errorf("settled_by = %v, want [%v]", first.SettleUp.SettledBy, alice.ID)
	}

	w = performRequest(t, r, http.MethodPost, path, tokenB, nil)
	var second ConfirmSettlementResponse
	decodeData(t, w, &second)
	if !second.AllSettled {
		t.Error("all_settled = false after every member confirmed")
	}
	if !second.SettleUp.IsSettled {
		t.Error("settle-up record not marked settled")
	}

	var status models.SettleStatusResponse
	w = performRequest(t, r, http.MethodGet, path+"/status", tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: code = %d (body: %s)", w.Code, w.Body.String())
	}
	decodeData(t, w, &status)
	if !status.UserSettled || !status.AllSettled {
		t.Errorf("status = %+v, want userSettled && allSettled", status)
	}
}

func TestConfirmSettlementRequiresMembership(t *testing.T) {
	r := setupTestRouter(t)

	alice, _ := newTestUser(t, "alice")
	_, tokenOutsider := newTestUser(t, "mallory")
	group := newTestGroup(t, alice)

	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/settleup", tokenOutsider, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for non-member", w.Code)
	}
}

func TestConfirmSettlementUnknownGroupHTTP(t *testing.T) {
	r := setupTestRouter(t)
	_, tokenA := newTestUser(t, "alice")

	w := performRequest(t, r, http.MethodPost, "/api/groups/"+uuid.NewString()+"/settleup", tokenA, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown group", w.Code)
	}
}

// Removing the last unconfirmed member through the API freezes the cycle.
func TestRemoveMemberFinalizesCycle(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/settleup", tokenA, nil)

	remove := models.MembersRequest{Members: []string{bob.ID.String()}}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/members/remove", tokenA, remove)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d (body: %s)", w.Code, w.Body.String())
	}

	var status models.SettleStatusResponse
	w = performRequest(t, r, http.MethodGet, "/api/groups/"+group.ID.String()+"/settleup/status", tokenA, nil)
	decodeData(t, w, &status)
	if !status.AllSettled {
		t.Error("all_settled = false after the only unconfirmed member was removed")
	}

	req := models.MultiStatusRequest{GroupIDs: []string{group.ID.String()}}
	w = performRequest(t, r, http.MethodPost, "/api/settleup/multi-status", tokenA, req)
	var data struct {
		Status map[string]bool `json:"status"`
	}
	decodeData(t, w, &data)
	if !data.Status[group.ID.String()] {
		t.Error("multi-status reported unsettled after the removal settled the cycle")
	}
}

func TestMultiStatusEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, tokenB := newTestUser(t, "bob")
	g1 := newTestGroup(t, alice, bob)
	g2 := newTestGroup(t, alice, bob)

	performRequest(t, r, http.MethodPost, "/api/groups/"+g1.ID.String()+"/settleup", tokenA, nil)
	performRequest(t, r, http.MethodPost, "/api/groups/"+g1.ID.String()+"/settleup", tokenB, nil)

	req := models.MultiStatusRequest{GroupIDs: []string{g1.ID.String(), g2.ID.String()}}
	w := performRequest(t, r, http.MethodPost, "/api/settleup/multi-status", tokenA, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	var data struct {
		Status map[string]bool `json:"status"`
	}
	decodeData(t, w, &data)
	if !data.Status[g1.ID.String()] {
		t.Error("settled group reported unsettled")
	}
	if data.Status[g2.ID.String()] {
		t.Error("group without settlement history reported settled")
	}
}

func TestSettledGroupsEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	group := newTestGroup(t, alice)

	// Single-member group settles on the first confirmation
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/settleup", tokenA, nil)
	var confirm ConfirmSettlementResponse
	decodeData(t, w, &confirm)
	if !confirm.AllSettled {
		t.Fatalf("single-member group did not settle: %+v", confirm)
	}

	w = performRequest(t, r, http.MethodGet, "/api/settleup/settled-groups", tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	var data struct {
		SettledGroups []models.SettledGroupSummary `json:"settled_groups"`
	}
	decodeData(t, w, &data)
	if len(data.SettledGroups) != 1 {
		t.Fatalf("len(settled_groups) = %d, want 1", len(data.SettledGroups))
	}
	s := data.SettledGroups[0]
	if s.TotalAmount != 0 || s.ExpenseCount != 0 {
		t.Errorf("zero-expense group summary = total %v count %d, want 0/0", s.TotalAmount, s.ExpenseCount)
	}
}
