package referral_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/features/referral"
)

// chain строит сеть 1 → 2 → 3 → 4 (4 — покупатель).
func chain(t *testing.T, f *fixture, program referral.Program) []*referral.Profile {
	t.Helper()
	var out []*referral.Profile
	for id := int64(1); id <= 3; id++ {
		p := f.partner(t, id)
		if _, err := f.service.SwitchProgram(context.Background(), id, program); err != nil {
			t.Fatal(err)
		}
		f.invite(t, p, id+1)
		out = append(out, p)
	}
	return out
}

func commissions(t *testing.T, f *fixture, p *referral.Profile) decimal.Decimal {
	t.Helper()
	return f.profile(t, p.ID).Bonus.Sub(joinBonus)
}

func TestCommissionRates(t *testing.T) {
	tests := []struct {
		program referral.Program
		want    [3]string // уровни: профиль 3, 2, 1
		count   int
	}{
		{referral.Direct, [3]string{"25", "0", "0"}, 1},
		{referral.MultiLevel, [3]string{"15", "5", "5"}, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.program), func(t *testing.T) {
			f := newFixtureWith(t, referral.Options{CommissionsOn: true})
			ps := chain(t, f, tt.program)

			n, err := f.service.CreditPurchaseCommission(context.Background(), 4, 77, decimal.NewFromInt(100))
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.count {
				t.Errorf("credited = %d, want %d", n, tt.count)
			}
			for i, want := range tt.want {
				owner := ps[2-i]
				if got := commissions(t, f, owner); !got.Equal(decimal.RequireFromString(want)) {
					t.Errorf("level %d commission = %s, want %s", i+1, got, want)
				}
			}
		})
	}
}

func TestCommissionIsIdempotentPerOrder(t *testing.T) {
	f := newFixtureWith(t, referral.Options{CommissionsOn: true})
	ps := chain(t, f, referral.MultiLevel)
	ctx := context.Background()

	if _, err := f.service.CreditPurchaseCommission(ctx, 4, 77, decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	n, err := f.service.CreditPurchaseCommission(ctx, 4, 77, decimal.NewFromInt(100))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second call credited %d", n)
	}
	if got := commissions(t, f, ps[2]); !got.Equal(decimal.NewFromInt(15)) {
		t.Errorf("level 1 = %s", got)
	}

	// Другой заказ начисляется отдельно.
	if n, _ := f.service.CreditPurchaseCommission(ctx, 4, 78, decimal.NewFromInt(100)); n != 3 {
		t.Errorf("new order credited %d", n)
	}
}

func TestCommissionRoundsToCents(t *testing.T) {
	f := newFixtureWith(t, referral.Options{CommissionsOn: true})
	ps := chain(t, f, referral.MultiLevel)

	if _, err := f.service.CreditPurchaseCommission(context.Background(), 4, 1, decimal.RequireFromString("0.99")); err != nil {
		t.Fatal(err)
	}
	// 0.99 × 0.15 = 0.1485 → 0.15
	if got := commissions(t, f, ps[2]); !got.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("commission = %s", got)
	}
}

func TestCommissionDisabled(t *testing.T) {
	f := newFixture(t)
	chain(t, f, referral.MultiLevel)

	n, err := f.service.CreditPurchaseCommission(context.Background(), 4, 77, decimal.NewFromInt(100))
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestCommissionWithoutRecruiter(t *testing.T) {
	f := newFixtureWith(t, referral.Options{CommissionsOn: true})
	n, err := f.service.CreditPurchaseCommission(context.Background(), 99, 1, decimal.NewFromInt(100))
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
