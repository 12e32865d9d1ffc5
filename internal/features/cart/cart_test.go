package cart_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/cart"
	"serotonyl.ru/storefront-bot/internal/testutil"
)

const userID = 42

func newService(t *testing.T) (*cart.Service, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewMemStore()
	store.SeedItem("x", "Худи", decimal.RequireFromString("10.50"), true)
	store.SeedItem("y", "Кепка", decimal.NewFromInt(4), true)
	store.SeedItem("old", "Снято с продажи", decimal.NewFromInt(1), false)
	return cart.NewService(store.Cart(), decimal.NewFromInt(90)), store
}

func quantity(t *testing.T, svc *cart.Service, itemID string) int {
	t.Helper()
	c, err := svc.List(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return c.Quantity(itemID)
}

func TestAddAndDecreaseSequence(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	steps := []struct {
		name string
		op   func() (int, error)
		want int
	}{
		{"add", func() (int, error) { return svc.Add(ctx, userID, "x") }, 1},
		{"add again", func() (int, error) { return svc.Add(ctx, userID, "x") }, 2},
		{"decrease", func() (int, error) { return svc.Decrease(ctx, userID, "x") }, 1},
		{"decrease to zero", func() (int, error) { return svc.Decrease(ctx, userID, "x") }, 0},
		{"decrease missing line", func() (int, error) { return svc.Decrease(ctx, userID, "x") }, 0},
	}
	for _, s := range steps {
		got, err := s.op()
		if err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got != s.want {
			t.Fatalf("%s: quantity %d, want %d", s.name, got, s.want)
		}
		if q := quantity(t, svc, "x"); q != s.want {
			t.Fatalf("%s: stored quantity %d, want %d", s.name, q, s.want)
		}
	}

	c, _ := svc.List(ctx, userID)
	if !c.IsEmpty() {
		t.Errorf("cart not empty: %+v", c.Lines)
	}
}

func TestAddUnknownOrInactiveItem(t *testing.T) {
	svc, _ := newService(t)
	for _, id := range []string{"nope", "old"} {
		if _, err := svc.Add(context.Background(), userID, id); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("Add(%q) = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := svc.Add(context.Background(), userID, "  "); !errors.Is(err, common.ErrValidation) {
		t.Errorf("empty id: %v", err)
	}
	if _, err := svc.Add(context.Background(), userID, strings.Repeat("a", 65)); !errors.Is(err, common.ErrValidation) {
		t.Errorf("long id: %v", err)
	}
}

func TestIncreaseRequiresLine(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Increase(ctx, userID, "x"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
	svc.Add(ctx, userID, "x")
	if q, err := svc.Increase(ctx, userID, "x"); err != nil || q != 2 {
		t.Fatalf("q=%d err=%v", q, err)
	}
}

func TestTotals(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	svc.Add(ctx, userID, "x")
	svc.Add(ctx, userID, "x")
	svc.Add(ctx, userID, "y")

	c, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Total.Equal(decimal.NewFromInt(25)) {
		t.Errorf("total = %s, want 25", c.Total)
	}
	if !c.TotalSecondary.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("secondary = %s, want 2250", c.TotalSecondary)
	}
	if c.Count() != 3 {
		t.Errorf("count = %d", c.Count())
	}
}

func TestRemoveAndClear(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	svc.Add(ctx, userID, "x")
	svc.Add(ctx, userID, "y")
	svc.Add(ctx, userID+1, "x")

	if err := svc.Remove(ctx, userID, "x"); err != nil {
		t.Fatal(err)
	}
	if quantity(t, svc, "x") != 0 || quantity(t, svc, "y") != 1 {
		t.Fatalf("remove touched the wrong line")
	}
	if err := svc.Clear(ctx, userID); err != nil {
		t.Fatal(err)
	}
	if c, _ := svc.List(ctx, userID); !c.IsEmpty() {
		t.Errorf("cart not cleared")
	}
	if c, _ := svc.List(ctx, userID+1); c.Quantity("x") != 1 {
		t.Errorf("another user's cart changed")
	}
}

func TestConcurrentAdds(t *testing.T) {
	svc, _ := newService(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Add(context.Background(), userID, "x"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if q := quantity(t, svc, "x"); q != 25 {
		t.Errorf("quantity = %d, want 25", q)
	}
}

func TestHandlerCallbacks(t *testing.T) {
	svc, _ := newService(t)
	sender := &testutil.Sender{}
	h := cart.NewHandler(svc, sender, "₽", "сум")
	ctx := context.Background()

	press := func(data string) {
		h.HandleCallback(ctx, &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: userID},
			Data:    data,
			Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: userID}},
		})
	}

	press("cart:add:x")
	press("cart:inc:x")
	if q := quantity(t, svc, "x"); q != 2 {
		t.Fatalf("quantity = %d", q)
	}
	if !strings.Contains(sender.Last(), "Худи × 2") {
		t.Errorf("cart not re-rendered: %q", sender.Last())
	}

	press("cart:dec:x")
	press("cart:dec:x")
	if !strings.Contains(sender.Last(), "Корзина пуста") {
		t.Errorf("last = %q", sender.Last())
	}

	press("cart:noop")
	press("cart:inc:nope")
	cbs := sender.Callbacks()
	if got := cbs[len(cbs)-1]; got != "❌ Товар не найден" {
		t.Errorf("callback answer = %q", got)
	}
}

func TestFormatCart(t *testing.T) {
	svc, _ := newService(t)
	h := cart.NewHandler(svc, &testutil.Sender{}, "₽", "сум")
	ctx := context.Background()
	svc.Add(ctx, userID, "x")
	svc.Add(ctx, userID, "x")

	c, _ := svc.List(ctx, userID)
	text := h.FormatCart(c)
	for _, want := range []string{"2 товара", "Худи × 2 — 21.00 ₽", "Итого: 21.00 ₽ / 1 890.00 сум"} {
		if !strings.Contains(text, want) {
			t.Errorf("%q not in %q", want, text)
		}
	}
}
