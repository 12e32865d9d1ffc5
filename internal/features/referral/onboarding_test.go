package referral_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/referral"
	"serotonyl.ru/storefront-bot/internal/testutil"
)

func TestOnboardCreatesEdgeAndCredits(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(42))

	if res.Status != referral.Completed || !res.EdgeCreated || !res.Credited {
		t.Fatalf("result = %+v", res)
	}
	if res.Owner == nil || res.Owner.ProfileID != owner.ID {
		t.Errorf("owner = %+v", res.Owner)
	}
	edges := f.edgesBetween(owner, 42)
	if len(edges) != 1 || edges[0].Level != 1 {
		t.Fatalf("edges = %+v", edges)
	}
	txs := f.store.Transactions(owner.ID)
	if len(txs) != 1 || txs[0].Type != ledger.Credit || !txs[0].Amount.Equal(joinBonus) {
		t.Fatalf("transactions = %+v", txs)
	}
	if ref := txs[0].Ref; ref == nil || *ref != referral.JoinRef(owner.ID, 42) {
		t.Errorf("ref = %v", ref)
	}
	if got := f.profile(t, owner.ID).Bonus; !got.Equal(joinBonus) {
		t.Errorf("bonus = %s, want %s", got, joinBonus)
	}
	if msgs := f.notifier.To(1); len(msgs) != 1 {
		t.Errorf("owner notifications = %d, want 1", len(msgs))
	}
}

func TestOnboardTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)
	f.invite(t, owner, 42)

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(42))

	if res.Status != referral.Completed || res.EdgeCreated || res.Credited {
		t.Fatalf("second result = %+v", res)
	}
	if n := len(f.edgesBetween(owner, 42)); n != 1 {
		t.Errorf("edges = %d, want 1", n)
	}
	if n := len(f.store.Transactions(owner.ID)); n != 1 {
		t.Errorf("transactions = %d, want 1", n)
	}
	if got := f.profile(t, owner.ID).Bonus; !got.Equal(joinBonus) {
		t.Errorf("bonus = %s", got)
	}
	if msgs := f.notifier.To(1); len(msgs) != 1 {
		t.Errorf("notifications = %d, want 1", len(msgs))
	}
}

func TestOnboardConcurrentDoubleTap(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)

	var wg sync.WaitGroup
	results := make([]referral.OnboardResult, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.service.Onboard(context.Background(), owner.ReferralCode, user(42))
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		if r.Status != referral.Completed {
			t.Errorf("status %s, err %v", r.Status, r.Err)
		}
		if r.Credited {
			credited++
		}
	}
	if credited != 1 {
		t.Errorf("credited %d times", credited)
	}
	if n := len(f.edgesBetween(owner, 42)); n != 1 {
		t.Errorf("edges = %d", n)
	}
	if n := len(f.store.Transactions(owner.ID)); n != 1 {
		t.Errorf("transactions = %d", n)
	}
	if got := f.profile(t, owner.ID).Bonus; !got.Equal(joinBonus) {
		t.Errorf("bonus = %s", got)
	}
}

func TestOnboardUnknownCode(t *testing.T) {
	f := newFixture(t)
	f.partner(t, 1)

	if _, err := f.service.ResolveReferralCode(context.Background(), "DOES-NOT-EXIST"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Resolve: %v", err)
	}

	res := f.service.Onboard(context.Background(), "DOES-NOT-EXIST", user(42))
	if res.Status != referral.RejectedInvalidCode {
		t.Fatalf("status = %s", res.Status)
	}
	if n := len(f.store.Edges()); n != 0 {
		t.Errorf("edges = %d", n)
	}
}

func TestOnboardEmptyCode(t *testing.T) {
	f := newFixture(t)
	res := f.service.Onboard(context.Background(), "   ", user(42))
	if res.Status != referral.RejectedInvalidCode {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestOnboardAcceptsPrefixedLowercaseCode(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)

	res := f.service.Onboard(context.Background(), "ref_"+strings.ToLower(owner.ReferralCode), user(42))
	if res.Status != referral.Completed || !res.EdgeCreated {
		t.Fatalf("result = %+v", res)
	}
}

func TestOnboardSelfReferral(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(1))
	if res.Status != referral.RejectedInvalidCode {
		t.Fatalf("status = %s", res.Status)
	}
	if n := len(f.store.Edges()); n != 0 {
		t.Errorf("edges = %d", n)
	}
	if n := len(f.store.Transactions(owner.ID)); n != 0 {
		t.Errorf("transactions = %d", n)
	}
}

func TestOnboardFirstRecruiterWins(t *testing.T) {
	f := newFixture(t)
	first := f.partner(t, 1)
	second := f.partner(t, 2)
	f.invite(t, first, 42)

	res := f.service.Onboard(context.Background(), second.ReferralCode, user(42))

	if res.Status != referral.Completed || res.EdgeCreated || res.Credited {
		t.Fatalf("result = %+v", res)
	}
	if n := len(f.edgesBetween(second, 42)); n != 0 {
		t.Errorf("second recruiter got %d edges", n)
	}
	if n := len(f.store.Transactions(second.ID)); n != 0 {
		t.Errorf("second recruiter got %d transactions", n)
	}
}

func TestOnboardBuildsUpline(t *testing.T) {
	f := newFixture(t)
	a := f.partner(t, 1)
	f.invite(t, a, 2)
	b := f.partner(t, 2)
	f.invite(t, b, 3)
	c := f.partner(t, 3)
	f.invite(t, c, 4)
	d := f.partner(t, 4)
	f.invite(t, d, 5)

	tests := []struct {
		name  string
		owner *referral.Profile
		want  [3]int64
	}{
		{"A", a, [3]int64{1, 1, 1}}, // 2 / 3 / 4
		{"B", b, [3]int64{1, 1, 1}}, // 3 / 4 / 5
		{"C", c, [3]int64{1, 1, 0}}, // 4 / 5
		{"D", d, [3]int64{1, 0, 0}}, // 5
	}
	for _, tt := range tests {
		if got := f.levels(t, tt.owner); got != tt.want {
			t.Errorf("%s levels = %v, want %v", tt.name, got, tt.want)
		}
	}

	// Бонус только за первый уровень.
	for _, p := range []*referral.Profile{a, b, c, d} {
		if got := f.profile(t, p.ID).Bonus; !got.Equal(joinBonus) {
			t.Errorf("profile %d bonus = %s", p.ID, got)
		}
	}
}

func TestOnboardStopsOnCycle(t *testing.T) {
	f := newFixture(t)
	a := f.partner(t, 1)
	f.invite(t, a, 2)
	b := f.partner(t, 2)
	// Старые данные: B числится пригласившим A.
	f.store.InjectEdge(b.ID, 1, 1)

	f.invite(t, b, 3)

	if got := f.levels(t, a); got[1] != 1 {
		t.Errorf("A level 2 = %d, want 1", got[1])
	}
	if n := len(f.store.Edges()); n != 4 {
		t.Errorf("edges = %d, want 4", n)
	}
}

func TestOnboardNotifyFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("bot was blocked by the user")
	owner := f.partner(t, 1)

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(42))
	if res.Status != referral.Completed || !res.Credited {
		t.Fatalf("result = %+v", res)
	}
}

func TestOnboardTransientResolve(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)
	f.store.FailOnce("GetProfileByCode", testutil.Transient("GetProfileByCode"))

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(42))
	if res.Status != referral.FailedTransient || !errors.Is(res.Err, common.ErrTransient) {
		t.Fatalf("result = %+v", res)
	}
	if n := len(f.store.Edges()); n != 0 {
		t.Errorf("edges = %d", n)
	}
}

func TestOnboardHealsAfterCreditFailure(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)
	f.store.FailOnce("Append", testutil.Transient("Append"))

	res := f.service.Onboard(context.Background(), owner.ReferralCode, user(42))
	if res.Status != referral.FailedTransient || !res.EdgeCreated || res.Credited {
		t.Fatalf("first result = %+v", res)
	}
	if n := len(f.store.Transactions(owner.ID)); n != 0 {
		t.Fatalf("transactions after failure = %d", n)
	}

	res = f.service.Onboard(context.Background(), owner.ReferralCode, user(42))
	if res.Status != referral.Completed || res.EdgeCreated || !res.Credited {
		t.Fatalf("retry result = %+v", res)
	}
	if n := len(f.edgesBetween(owner, 42)); n != 1 {
		t.Errorf("edges = %d", n)
	}
	if got := f.profile(t, owner.ID).Bonus; !got.Equal(joinBonus) {
		t.Errorf("bonus = %s", got)
	}
	if msgs := f.notifier.To(1); len(msgs) != 1 {
		t.Errorf("notifications = %d, want 1", len(msgs))
	}
}

func TestOnboardRegistersNewUser(t *testing.T) {
	f := newFixture(t)
	owner := f.partner(t, 1)
	f.invite(t, owner, 42)

	m, err := f.members.GetByUserID(context.Background(), 42)
	if err != nil {
		t.Fatalf("member not created: %v", err)
	}
	if m.FirstName != "User" {
		t.Errorf("member = %+v", m)
	}
}

// gateNotifier задерживает каждое уведомление до закрытия release.
type gateNotifier struct {
	entered chan int64
	release chan struct{}
}

func (g *gateNotifier) Notify(ctx context.Context, userID int64, text string) error {
	g.entered <- userID
	<-g.release
	return nil
}

func TestSlowNotifyDoesNotBlockOwner(t *testing.T) {
	gate := &gateNotifier{entered: make(chan int64, 2), release: make(chan struct{})}
	f := buildFixture(t, referral.Options{}, gate)
	owner := f.partner(t, 1)

	results := make(chan referral.OnboardResult, 2)
	go func() { results <- f.service.Onboard(context.Background(), owner.ReferralCode, user(42)) }()
	<-gate.entered

	go func() { results <- f.service.Onboard(context.Background(), owner.ReferralCode, user(43)) }()
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		close(gate.release)
		t.Fatal("second onboarding waited for the first notification")
	}
	close(gate.release)

	for i := 0; i < 2; i++ {
		if res := <-results; res.Status != referral.Completed || !res.Credited {
			t.Errorf("result = %+v", res)
		}
	}
	if got := f.profile(t, owner.ID).Bonus; !got.Equal(joinBonus.Add(joinBonus)) {
		t.Errorf("bonus = %s, want %s", got, joinBonus.Add(joinBonus))
	}
}
