package referral_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/features/referral"
	"serotonyl.ru/storefront-bot/internal/testutil"
)

var joinBonus = decimal.NewFromInt(3)

type fixture struct {
	store    *testutil.MemStore
	notifier *testutil.Notifier
	members  *members.Service
	service  *referral.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, referral.Options{})
}

func newFixtureWith(t *testing.T, opts referral.Options) *fixture {
	t.Helper()
	return buildFixture(t, opts, nil)
}

// buildFixture собирает сервис; sink, если задан, заменяет уведомитель.
func buildFixture(t *testing.T, opts referral.Options, sink referral.Notifier) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	notifier := &testutil.Notifier{}
	if sink == nil {
		sink = notifier
	}
	memberService := members.NewService(store.Members())
	ledgerService := ledger.NewService(store.Ledger(), ledger.NewProjector(store.Ledger(), nil))

	if opts.JoinBonus.IsZero() {
		opts.JoinBonus = joinBonus
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₽"
	}
	codes := referral.NewCodeGenerator(store.Referral(), 0, 0)

	return &fixture{
		store:    store,
		notifier: notifier,
		members:  memberService,
		service:  referral.NewService(store.Referral(), ledgerService, memberService, sink, codes, opts),
	}
}

func user(id int64) members.Identity {
	return members.Identity{UserID: id, FirstName: "User"}
}

// partner регистрирует пользователя и создаёт ему профиль.
func (f *fixture) partner(t *testing.T, userID int64) *referral.Profile {
	t.Helper()
	ctx := context.Background()
	if _, err := f.members.EnsureMember(ctx, user(userID)); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	p, err := f.service.EnsureProfile(ctx, userID)
	if err != nil {
		t.Fatalf("EnsureProfile(%d): %v", userID, err)
	}
	return p
}

// invite проводит онбординг userID по коду пригласившего и требует успеха.
func (f *fixture) invite(t *testing.T, inviter *referral.Profile, userID int64) referral.OnboardResult {
	t.Helper()
	res := f.service.Onboard(context.Background(), inviter.ReferralCode, user(userID))
	if res.Status != referral.Completed {
		t.Fatalf("Onboard(%d by %d): status %s, err %v", userID, inviter.UserID, res.Status, res.Err)
	}
	return res
}

func (f *fixture) profile(t *testing.T, id int64) *referral.Profile {
	t.Helper()
	p, err := f.store.Referral().GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	return p
}

func (f *fixture) edgesBetween(owner *referral.Profile, userID int64) []*referral.Edge {
	var out []*referral.Edge
	for _, e := range f.store.Edges() {
		if e.OwnerProfileID == owner.ID && e.ReferredUserID != nil && *e.ReferredUserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) levels(t *testing.T, owner *referral.Profile) [3]int64 {
	t.Helper()
	var out [3]int64
	for level := 1; level <= 3; level++ {
		n, err := f.store.Referral().CountEdges(context.Background(), owner.ID, level)
		if err != nil {
			t.Fatal(err)
		}
		out[level-1] = n
	}
	return out
}
