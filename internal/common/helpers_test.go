package common

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPluralizeItems(t *testing.T) {
	cases := map[int64]string{
		0: "товаров", 1: "товар", 2: "товара", 4: "товара", 5: "товаров",
		11: "товаров", 12: "товаров", 21: "товар", 22: "товара", 111: "товаров",
	}
	for n, want := range cases {
		if got := PluralizeItems(n); got != want {
			t.Errorf("PluralizeItems(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount decimal.Decimal
		symbol string
		want   string
	}{
		{decimal.NewFromInt(3), "$", "3.00 $"},
		{decimal.RequireFromString("1250.5"), "₽", "1 250.50 ₽"},
		{decimal.RequireFromString("-0.5"), "", "-0.50"},
		{decimal.RequireFromString("1234567.125"), "$", "1 234 567.13 $"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.amount, tt.symbol); got != tt.want {
			t.Errorf("FormatMoney(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatSignedMoney(t *testing.T) {
	if got := FormatSignedMoney(decimal.NewFromInt(3), "$"); got != "+3.00 $" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSignedMoney(decimal.NewFromInt(-1), "$"); got != "-1.00 $" {
		t.Fatalf("got %q", got)
	}
}

func TestTaxonomyWrapping(t *testing.T) {
	if !errors.Is(ErrInvalidAmount, ErrValidation) {
		t.Fatal("ErrInvalidAmount must be a validation error")
	}
	if !errors.Is(ErrEmptyCart, ErrValidation) {
		t.Fatal("ErrEmptyCart must be a validation error")
	}
	if IsRetryable(ErrNotFound) {
		t.Fatal("not found is not retryable")
	}
	if !IsRetryable(errors.Join(ErrTransient, errors.New("dial tcp"))) {
		t.Fatal("transient must be retryable")
	}
}
