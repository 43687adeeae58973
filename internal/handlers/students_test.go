package handlers

import (
	"context"
	"net/http"
	"testing"

	"coined/internal/models"
	"coined/internal/services"
	"coined/internal/store"

	"github.com/pkg/errors"
)

func TestAdjustCoins(t *testing.T) {
	var got services.AdjustmentRequest
	router := newTestRouter(testDeps{ledger: stubLedgerService{applyFn: func(_ context.Context, req services.AdjustmentRequest) (services.AdjustmentResult, error) {
		got = req
		return services.AdjustmentResult{
			Account: models.Account{ID: req.AccountID, Coins: 130},
			Entry:   models.LedgerEntry{ID: "e1", Amount: req.Amount},
		}, nil
	}}})

	rr := do(t, router, http.MethodPost, "/students/s1/coins", `{"amount":"10","type":"earn","label":"Homework"}`, &testTeacher)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.AccountID != "s1" || got.Amount != 10 || got.Direction != models.DirectionEarn || got.ActorID != testTeacher.ID {
		t.Fatalf("unexpected request: %#v", got)
	}
	var payload struct {
		Account models.Account     `json:"account"`
		Entry   models.LedgerEntry `json:"ledger_entry"`
	}
	decodeBody(t, rr, &payload)
	if payload.Account.Coins != 130 || payload.Entry.ID != "e1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestAdjustCoinsRejectsBadAmounts(t *testing.T) {
	router := newTestRouter(testDeps{ledger: stubLedgerService{applyFn: func(context.Context, services.AdjustmentRequest) (services.AdjustmentResult, error) {
		t.Fatalf("invalid amount reached the ledger")
		return services.AdjustmentResult{}, nil
	}}})
	for _, body := range []string{
		`{"amount":0,"direction":"earn"}`,
		`{"amount":-5,"direction":"earn"}`,
		`{"amount":2.5,"direction":"earn"}`,
		`{"direction":"earn"}`,
	} {
		if rr := do(t, router, http.MethodPost, "/students/s1/coins", body, &testTeacher); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestAdjustCoinsErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrInsufficientBalance, http.StatusBadRequest},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := newTestRouter(testDeps{ledger: stubLedgerService{applyFn: func(context.Context, services.AdjustmentRequest) (services.AdjustmentResult, error) {
			return services.AdjustmentResult{}, errors.Wrap(tc.err, "apply")
		}}})
		rr := do(t, router, http.MethodPost, "/students/s1/coins", `{"amount":5,"direction":"spend"}`, &testTeacher)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var payload map[string]string
		decodeBody(t, rr, &payload)
		if tc.status == http.StatusInternalServerError && payload["error"] != "internal error" {
			t.Fatalf("internal errors must not leak: %#v", payload)
		}
	}
}

func TestStudentRoutesRequireTeacher(t *testing.T) {
	router := newTestRouter(testDeps{})
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/students/s2"},
		{http.MethodDelete, "/students/s2"},
		{http.MethodPost, "/students/s2/coins"},
		{http.MethodGet, "/reconcile"},
	} {
		if rr := do(t, router, route.method, route.path, `{}`, &testStudent); rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", route.method, route.path, rr.Code)
		}
	}
}

func TestListTransactionsPassesLimit(t *testing.T) {
	var gotLimit int
	var gotAccount string
	router := newTestRouter(testDeps{ledger: stubLedgerService{listFn: func(_ context.Context, requester models.Identity, accountID string, limit int) ([]models.LedgerEntry, error) {
		gotLimit, gotAccount = limit, accountID
		if requester.AccountID != accountID {
			return nil, services.ErrForbidden
		}
		return []models.LedgerEntry{{ID: "e1"}}, nil
	}}})

	rr := do(t, router, http.MethodGet, "/students/s1/transactions?limit=5", nil, &testStudent)
	if rr.Code != http.StatusOK || gotLimit != 5 || gotAccount != "s1" {
		t.Fatalf("unexpected result: %d limit=%d account=%s", rr.Code, gotLimit, gotAccount)
	}
	if rr := do(t, router, http.MethodGet, "/students/s2/transactions", nil, &testStudent); rr.Code != http.StatusForbidden || gotLimit != 100 {
		t.Fatalf("expected 403 with default limit, got %d limit=%d", rr.Code, gotLimit)
	}
}

func TestDeleteStudent(t *testing.T) {
	router := newTestRouter(testDeps{accounts: stubAccountService{removeStudentFn: func(_ context.Context, _ models.Identity, id string) error {
		if id != "s1" {
			return services.ErrNotFound
		}
		return nil
	}}})

	if rr := do(t, router, http.MethodDelete, "/students/s1", nil, &testTeacher); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := do(t, router, http.MethodDelete, "/students/zz", nil, &testTeacher); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestReconcileCountsMismatches(t *testing.T) {
	router := newTestRouter(testDeps{ledger: stubLedgerService{reconcileFn: func(context.Context, models.Identity) ([]store.BalanceCheck, error) {
		return []store.BalanceCheck{
			{AccountID: "s1", StoredBalance: 10, CalculatedBalance: 10},
			{AccountID: "s2", StoredBalance: 12, CalculatedBalance: 10, Difference: 2},
		}, nil
	}}})

	rr := do(t, router, http.MethodGet, "/reconcile", nil, &testTeacher)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Accounts   []store.BalanceCheck `json:"accounts"`
		Mismatched int                  `json:"mismatched"`
	}
	decodeBody(t, rr, &payload)
	if len(payload.Accounts) != 2 || payload.Mismatched != 1 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestAuditTrailPassesPaging(t *testing.T) {
	var gotLimit, gotOffset int
	router := newTestRouter(testDeps{ledger: stubLedgerService{auditFn: func(_ context.Context, teacher models.Identity, limit, offset int) ([]store.AuditLog, error) {
		if teacher.AccountID != testTeacher.ID {
			t.Fatalf("unexpected teacher: %#v", teacher)
		}
		gotLimit, gotOffset = limit, offset
		return []store.AuditLog{{ID: "log-1", Action: "remove_student"}}, nil
	}}})

	rr := do(t, router, http.MethodGet, "/audit?limit=20&offset=40", nil, &testTeacher)
	if rr.Code != http.StatusOK || gotLimit != 20 || gotOffset != 40 {
		t.Fatalf("unexpected result: %d limit=%d offset=%d", rr.Code, gotLimit, gotOffset)
	}
	if rr := do(t, router, http.MethodGet, "/audit", nil, &testStudent); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rr.Code)
	}
}

func TestLeaderboardIsPublic(t *testing.T) {
	var gotLimit int
	router := newTestRouter(testDeps{accounts: stubAccountService{leaderboardFn: func(_ context.Context, limit int) ([]services.LeaderboardEntry, error) {
		gotLimit = limit
		return []services.LeaderboardEntry{{Rank: 1, Name: "Ann", Coins: 5000, Level: "Diamond"}}, nil
	}}})

	rr := do(t, router, http.MethodGet, "/leaderboard", nil, nil)
	if rr.Code != http.StatusOK || gotLimit != 10 {
		t.Fatalf("unexpected result: %d limit=%d", rr.Code, gotLimit)
	}
	var entries []services.LeaderboardEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 1 || entries[0].Level != "Diamond" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(testDeps{}), http.MethodGet, "/health", nil, nil)
	var payload map[string]string
	decodeBody(t, rr, &payload)
	if rr.Code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("unexpected health: %d %#v", rr.Code, payload)
	}
}
