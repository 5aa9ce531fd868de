package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"splitshare-backend/models"
	"splitshare-backend/utils"

	"github.com/google/uuid"
)

func TestCreateExpenseRejectsNonMemberSplit(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	outsider, _ := newTestUser(t, "mallory")
	group := newTestGroup(t, alice, bob)

	req := models.CreateExpenseRequest{
		Amount:      100,
		Description: "dinner",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 50},
			{Member: outsider.ID.String(), Share: 50},
		},
	}

	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-member split", w.Code)
	}
	if n := expenseCount(t, group.ID); n != 0 {
		t.Errorf("expense rows = %d, want 0 (no partial writes)", n)
	}
}

func TestCreateExpenseRejectsSplitSumMismatch(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	req := models.CreateExpenseRequest{
		Amount:      100,
		Description: "dinner",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 30},
			{Member: bob.ID.String(), Share: 30},
		},
	}

	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when shares don't add up to amount", w.Code)
	}
	if n := expenseCount(t, group.ID); n != 0 {
		t.Errorf("expense rows = %d, want 0 (no partial writes)", n)
	}
}

// Shares are stored at cent precision, so sub-cent inputs that only add up
// before rounding must be rejected.
func TestCreateExpenseRejectsSubCentShareDrift(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	carol, _ := newTestUser(t, "carol")
	group := newTestGroup(t, alice, bob, carol)

	req := models.CreateExpenseRequest{
		Amount:      100,
		Description: "dinner",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 33.333},
			{Member: bob.ID.String(), Share: 33.333},
			{Member: carol.ID.String(), Share: 33.334},
		},
	}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when rounded shares sum to 99.99", w.Code)
	}
	if n := expenseCount(t, group.ID); n != 0 {
		t.Errorf("expense rows = %d, want 0 (no partial writes)", n)
	}

	// Cent-precision shares for the same amount pass and persist intact
	req.Splits = []models.SplitInput{
		{Member: alice.ID.String(), Share: 33.33},
		{Member: bob.ID.String(), Share: 33.33},
		{Member: carol.ID.String(), Share: 33.34},
	}
	w = performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	var created models.ExpenseResponse
	decodeData(t, w, &created)
	var sum float64
	for _, s := range created.Splits {
		sum += s.Share
	}
	if utils.RoundToTwo(sum) != 100 {
		t.Errorf("persisted shares sum to %v, want 100", sum)
	}
}

func TestCreateExpenseDefaultsCategory(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	req := models.CreateExpenseRequest{
		Amount:      60,
		Description: "groceries",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 30},
			{Member: bob.ID.String(), Share: 30},
		},
	}

	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	var resp models.ExpenseResponse
	decodeData(t, w, &resp)
	if resp.Category != models.CategoryOther {
		t.Errorf("category = %q, want %q", resp.Category, models.CategoryOther)
	}
	if len(resp.Splits) != 2 {
		t.Errorf("len(splits) = %d, want 2", len(resp.Splits))
	}
}

func TestExpenseMutationPayerOnly(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, tokenB := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	create := models.CreateExpenseRequest{
		Amount:      100,
		Description: "hotel",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 50},
			{Member: bob.ID.String(), Share: 50},
		},
	}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, create)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body: %s)", w.Code, w.Body.String())
	}
	var created models.ExpenseResponse
	decodeData(t, w, &created)

	update := map[string]interface{}{"description": "spa"}
	w = performRequest(t, r, http.MethodPut, "/api/expenses/"+created.ID.String(), tokenB, update)
	if w.Code != http.StatusForbidden {
		t.Errorf("update by non-payer: status = %d, want 403", w.Code)
	}

	w = performRequest(t, r, http.MethodDelete, "/api/expenses/"+created.ID.String(), tokenB, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("delete by non-payer: status = %d, want 403", w.Code)
	}

	// The payer can do both
	w = performRequest(t, r, http.MethodPut, "/api/expenses/"+created.ID.String(), tokenA, update)
	if w.Code != http.StatusOK {
		t.Errorf("update by payer: status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	w = performRequest(t, r, http.MethodDelete, "/api/expenses/"+created.ID.String(), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete by payer: status = %d, want 200", w.Code)
	}
	if n := expenseCount(t, group.ID); n != 0 {
		t.Errorf("expense rows after delete = %d, want 0", n)
	}
}

func TestUpdateExpenseValidatesNewSplits(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, _ := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	create := models.CreateExpenseRequest{
		Amount:      80,
		Description: "taxi",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 40},
			{Member: bob.ID.String(), Share: 40},
		},
	}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, create)
	var created models.ExpenseResponse
	decodeData(t, w, &created)

	outsider, _ := newTestUser(t, "mallory")
	update := map[string]interface{}{
		"splits": []models.SplitInput{
			{Member: alice.ID.String(), Share: 40},
			{Member: outsider.ID.String(), Share: 40},
		},
	}
	w = performRequest(t, r, http.MethodPut, "/api/expenses/"+created.ID.String(), tokenA, update)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for split referencing a non-member", w.Code)
	}

	// Original splits stay intact
	w = performRequest(t, r, http.MethodGet, "/api/groups/"+group.ID.String()+"/expenses", tokenA, nil)
	var list []models.ExpenseResponse
	decodeData(t, w, &list)
	if len(list) != 1 || len(list[0].Splits) != 2 {
		t.Fatalf("expense list corrupted after rejected update: %+v", list)
	}
	for _, s := range list[0].Splits {
		if s.UserID == outsider.ID {
			t.Error("rejected update still wrote a split")
		}
	}
}

func TestUserGroupExpensePosition(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, tokenB := newTestUser(t, "bob")
	group := newTestGroup(t, alice, bob)

	create := models.CreateExpenseRequest{
		Amount:      100,
		Description: "dinner",
		Splits: []models.SplitInput{
			{Member: alice.ID.String(), Share: 50},
			{Member: bob.ID.String(), Share: 50},
		},
	}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+group.ID.String()+"/expenses", tokenA, create)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body: %s)", w.Code, w.Body.String())
	}

	path := "/api/groups/" + group.ID.String() + "/expenses/me"

	var posA models.GroupBalanceSummary
	w = performRequest(t, r, http.MethodGet, path, tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	decodeData(t, w, &posA)
	if posA.TotalToPay != 0 || posA.TotalToReceive != 50 {
		t.Errorf("A position = pay %v / receive %v, want 0 / 50", posA.TotalToPay, posA.TotalToReceive)
	}

	var posB models.GroupBalanceSummary
	w = performRequest(t, r, http.MethodGet, path, tokenB, nil)
	decodeData(t, w, &posB)
	if posB.TotalToPay != 50 || posB.TotalToReceive != 0 {
		t.Errorf("B position = pay %v / receive %v, want 50 / 0", posB.TotalToPay, posB.TotalToReceive)
	}
	if len(posB.Expenses) != 1 || posB.Expenses[0].UserRole != models.RoleMember {
		t.Errorf("B itemization = %+v, want one member-role entry", posB.Expenses)
	}
}

func TestAllExpensesExcludesSettledGroups(t *testing.T) {
	r := setupTestRouter(t)

	alice, tokenA := newTestUser(t, "alice")
	bob, tokenB := newTestUser(t, "bob")
	active := newTestGroup(t, alice, bob)
	settled := newTestGroup(t, alice, bob)

	for i, g := range []models.Group{active, settled} {
		req := models.CreateExpenseRequest{
			Amount:      100,
			Description: fmt.Sprintf("expense-%d", i),
			Splits: []models.SplitInput{
				{Member: alice.ID.String(), Share: 50},
				{Member: bob.ID.String(), Share: 50},
			},
		}
		w := performRequest(t, r, http.MethodPost, "/api/groups/"+g.ID.String()+"/expenses", tokenA, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create status = %d (body: %s)", w.Code, w.Body.String())
		}
	}

	// Settle the second group
	performRequest(t, r, http.MethodPost, "/api/groups/"+settled.ID.String()+"/settleup", tokenA, nil)
	performRequest(t, r, http.MethodPost, "/api/groups/"+settled.ID.String()+"/settleup", tokenB, nil)

	var position models.UserPosition
	w := performRequest(t, r, http.MethodGet, "/api/expenses", tokenB, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	decodeData(t, w, &position)

	if len(position.Expenses) != 1 {
		t.Fatalf("len(expenses) = %d, want 1 (settled group excluded)", len(position.Expenses))
	}
	if position.Expenses[0].Expense.GroupID != active.ID {
		t.Errorf("expense from group %v, want %v", position.Expenses[0].Expense.GroupID, active.ID)
	}
	if position.TotalToPay != 50 {
		t.Errorf("TotalToPay = %v, want 50", position.TotalToPay)
	}
}

func TestCreateExpenseUnknownGroup(t *testing.T) {
	r := setupTestRouter(t)
	_, tokenA := newTestUser(t, "alice")

	req := models.CreateExpenseRequest{Amount: 10, Description: "x"}
	w := performRequest(t, r, http.MethodPost, "/api/groups/"+uuid.NewString()+"/expenses", tokenA, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown group", w.Code)
	}
}
