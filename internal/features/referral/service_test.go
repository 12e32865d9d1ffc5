package referral_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/referral"
)

func TestEnsureProfileConcurrent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]int64, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.service.EnsureProfile(context.Background(), 7)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("profiles differ: %v", ids)
		}
	}
}

func TestEnsureProfileDefaults(t *testing.T) {
	f := newFixtureWith(t, referral.Options{DefaultProgram: referral.MultiLevel})
	p := f.partner(t, 7)

	if p.Program != referral.MultiLevel {
		t.Errorf("program = %s", p.Program)
	}
	if !p.Bonus.IsZero() || len(p.ReferralCode) != referral.DefaultCodeLength {
		t.Errorf("profile = %+v", p)
	}
}

func TestSwitchProgram(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, 7)

	got, err := f.service.SwitchProgram(context.Background(), 7, referral.MultiLevel)
	if err != nil {
		t.Fatal(err)
	}
	if got.Program != referral.MultiLevel || f.profile(t, p.ID).Program != referral.MultiLevel {
		t.Errorf("program not switched")
	}
	if f.profile(t, p.ID).ReferralCode != p.ReferralCode {
		t.Errorf("code changed")
	}

	if _, err := f.service.SwitchProgram(context.Background(), 7, referral.Program("PYRAMID")); !errors.Is(err, common.ErrUnknownProgram) {
		t.Errorf("got %v", err)
	}
}

func TestGetDashboard(t *testing.T) {
	f := newFixtureWith(t, referral.Options{BotUsername: "shop_bot"})
	owner := f.partner(t, 1)
	f.invite(t, owner, 2)
	f.invite(t, owner, 3)
	child := f.partner(t, 2)
	f.invite(t, child, 4)

	d, err := f.service.GetDashboard(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.EdgeCounts != [3]int64{2, 1, 0} || d.TotalPartners() != 3 {
		t.Errorf("counts = %v", d.EdgeCounts)
	}
	if len(d.Recent) != 2 {
		t.Errorf("recent = %d", len(d.Recent))
	}
	if !d.Profile.Bonus.Equal(decimal.NewFromInt(6)) {
		t.Errorf("bonus = %s", d.Profile.Bonus)
	}
	if !strings.HasPrefix(d.Link, "https://t.me/shop_bot?start=") || !strings.HasSuffix(d.Link, owner.ReferralCode) {
		t.Errorf("link = %q", d.Link)
	}
}
