package members_test

import (
	"context"
	"errors"
	"testing"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/testutil"
)

func TestEnsureMemberUpdatesNames(t *testing.T) {
	svc := members.NewService(testutil.NewMemStore().Members())
	ctx := context.Background()

	first, err := svc.EnsureMember(ctx, members.Identity{UserID: 42, Username: "old"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.EnsureMember(ctx, members.Identity{UserID: 42, Username: "new", FirstName: "Ann"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || second.DisplayName() != "@new" {
		t.Errorf("first=%+v second=%+v", first, second)
	}

	if _, err := svc.EnsureMember(ctx, members.Identity{}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("empty id: %v", err)
	}
}

func TestBan(t *testing.T) {
	svc := members.NewService(testutil.NewMemStore().Members())
	ctx := context.Background()

	if banned, err := svc.IsBanned(ctx, 7); err != nil || banned {
		t.Fatalf("unknown user: %v %v", banned, err)
	}
	if err := svc.SetBanned(ctx, 7, true); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("ban unknown: %v", err)
	}

	svc.EnsureMember(ctx, members.Identity{UserID: 7})
	if err := svc.SetBanned(ctx, 7, true); err != nil {
		t.Fatal(err)
	}
	if banned, _ := svc.IsBanned(ctx, 7); !banned {
		t.Error("not banned")
	}
	// Обновление имени бан не снимает.
	svc.EnsureMember(ctx, members.Identity{UserID: 7, FirstName: "Bob"})
	if banned, _ := svc.IsBanned(ctx, 7); !banned {
		t.Error("ban lost on upsert")
	}
}

func TestIsBannedStoreError(t *testing.T) {
	store := testutil.NewMemStore()
	store.Fail("GetByUserID", testutil.Transient("GetByUserID"))
	svc := members.NewService(store.Members())

	if _, err := svc.IsBanned(context.Background(), 7); !errors.Is(err, common.ErrTransient) {
		t.Fatalf("got %v", err)
	}
}

func TestIdentityDisplayName(t *testing.T) {
	tests := []struct {
		id   members.Identity
		want string
	}{
		{members.Identity{UserID: 1, Username: "ann"}, "@ann"},
		{members.Identity{UserID: 1, FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{members.Identity{UserID: 5}, "пользователь 5"},
	}
	for _, tt := range tests {
		if got := tt.id.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
