package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/reconcile"
	"serotonyl.ru/storefront-bot/internal/features/referral"
	"serotonyl.ru/storefront-bot/internal/testutil"
)

type fixture struct {
	store   *testutil.MemStore
	service *reconcile.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })
	projector := ledger.NewProjector(store.Ledger(), nil)
	return &fixture{store: store, service: reconcile.NewService(store.Reconcile(), projector)}
}

func (f *fixture) profile(t *testing.T, userID int64, code string) *referral.Profile {
	t.Helper()
	p := &referral.Profile{UserID: userID, Program: referral.Direct, ReferralCode: code}
	if err := f.store.Referral().CreateProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) bonus(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	p, err := f.store.Referral().GetProfile(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p.Bonus
}

func TestDedupeRemovesDuplicatesAndReprojects(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, 1, "AAAA")
	three := decimal.NewFromInt(3)

	f.store.InjectEdge(p.ID, 1, 42)
	f.store.InjectEdge(p.ID, 1, 42)
	f.store.InjectEdge(p.ID, 1, 43)
	f.store.InjectTransaction(p.ID, ledger.Credit, three, "Бонус", "referral:1:42")
	f.store.InjectTransaction(p.ID, ledger.Credit, three, "Бонус", "referral:1:42")
	f.store.InjectTransaction(p.ID, ledger.Credit, three, "Бонус", "referral:1:43")
	f.store.SetStoredBalance(p.ID, decimal.NewFromInt(9), decimal.NewFromInt(9))

	rep, err := f.service.Dedupe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.EdgesRemoved != 1 || rep.TransactionsRemoved != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Reprojected) != 1 || rep.Reprojected[0] != p.ID {
		t.Errorf("reprojected = %v", rep.Reprojected)
	}
	if n := len(f.store.Edges()); n != 2 {
		t.Errorf("edges = %d", n)
	}
	if got := f.bonus(t, p.ID); !got.Equal(decimal.NewFromInt(6)) {
		t.Errorf("bonus = %s, want 6", got)
	}
}

func TestDedupeKeepsDistinctManualOperations(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, 1, "AAAA")
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(5), "Корректировка", "")
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(6), "Корректировка", "")

	rep, err := f.service.Dedupe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.TransactionsRemoved != 0 || len(f.store.Transactions(p.ID)) != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestDedupeMatchesAcrossSecondBoundary(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, 1, "AAAA")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) {
		f.store.SetClock(func() time.Time { return base.Add(d) })
	}

	at(999 * time.Millisecond)
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(3), "Бонус", "r1")
	at(1001 * time.Millisecond)
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(3), "Бонус", "r1")
	at(5 * time.Second)
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(3), "Бонус", "r1")

	rep, err := f.service.Dedupe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.TransactionsRemoved != 1 {
		t.Fatalf("removed = %d, want 1", rep.TransactionsRemoved)
	}
	if got := f.bonus(t, p.ID); !got.Equal(decimal.NewFromInt(6)) {
		t.Errorf("bonus = %s, want 6", got)
	}
}

func TestVerifyAndFix(t *testing.T) {
	f := newFixture(t)
	good := f.profile(t, 1, "AAAA")
	bad := f.profile(t, 2, "BBBB")
	f.store.InjectTransaction(bad.ID, ledger.Credit, decimal.NewFromInt(10), "", "")
	f.store.InjectTransaction(bad.ID, ledger.Debit, decimal.NewFromInt(4), "", "")

	drifts, err := f.service.Verify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(drifts) != 1 || drifts[0].ProfileID != bad.ID {
		t.Fatalf("drifts = %+v", drifts)
	}
	if d := drifts[0]; !d.Ledger.Equal(decimal.NewFromInt(6)) || !d.Delta().Equal(decimal.NewFromInt(-6)) {
		t.Errorf("drift = %+v", d)
	}

	fixed, err := f.service.Fix(context.Background(), drifts)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed=%d err=%v", fixed, err)
	}
	if drifts, _ := f.service.Verify(context.Background()); len(drifts) != 0 {
		t.Errorf("drifts after fix = %+v", drifts)
	}
	if !f.bonus(t, good.ID).IsZero() {
		t.Errorf("good profile changed")
	}
}

func TestRunAndProject(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, 1, "AAAA")
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(3), "", "r1")
	f.store.InjectTransaction(p.ID, ledger.Credit, decimal.NewFromInt(3), "", "r1")

	rep, err := f.service.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.TransactionsRemoved != 1 || len(rep.Drifts) != 0 {
		t.Errorf("report = %+v", rep)
	}

	n, err := f.service.ProjectAll(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProjectAll: %d %v", n, err)
	}
	balance, err := f.service.ProjectUser(context.Background(), 1)
	if err != nil || !balance.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("ProjectUser: %s %v", balance, err)
	}
	if _, err := f.service.ProjectUser(context.Background(), 99); err == nil {
		t.Errorf("expected error for unknown user")
	}
}
