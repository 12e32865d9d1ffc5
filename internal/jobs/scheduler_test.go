package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/features/reconcile"
)

type fakeReconciler struct {
	drifts    []reconcile.Drift
	verifyErr error
	fixed     int
}

func (f *fakeReconciler) Verify(ctx context.Context) ([]reconcile.Drift, error) {
	return f.drifts, f.verifyErr
}

func (f *fakeReconciler) Fix(ctx context.Context, drifts []reconcile.Drift) (int, error) {
	f.fixed += len(drifts)
	return len(drifts), nil
}

func TestRunReconcile(t *testing.T) {
	drift := reconcile.Drift{ProfileID: 1, Stored: decimal.NewFromInt(5), Ledger: decimal.NewFromInt(3)}

	tests := []struct {
		name      string
		rec       *fakeReconciler
		autoFix   bool
		wantFixed int
		wantText  string
	}{
		{"no drifts", &fakeReconciler{}, true, 0, ""},
		{"verify error", &fakeReconciler{verifyErr: errors.New("db down")}, true, 0, ""},
		{"report only", &fakeReconciler{drifts: []reconcile.Drift{drift}}, false, 0, "Запустите /reconcile"},
		{"auto fix", &fakeReconciler{drifts: []reconcile.Drift{drift, drift}}, true, 2, "исправлено 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []string
			s := NewScheduler(tt.rec, "0 4 * * *", "Europe/Moscow", tt.autoFix, func(text string) {
				sent = append(sent, text)
			})

			s.RunReconcile(context.Background())

			if tt.rec.fixed != tt.wantFixed {
				t.Errorf("fixed = %d, want %d", tt.rec.fixed, tt.wantFixed)
			}
			if tt.wantText == "" {
				if len(sent) != 0 {
					t.Errorf("unexpected notification %q", sent)
				}
				return
			}
			if len(sent) != 1 || !strings.Contains(sent[0], tt.wantText) {
				t.Errorf("sent = %q, want %q", sent, tt.wantText)
			}
		})
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&fakeReconciler{}, "not a cron", "", false, nil)
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected error")
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(&fakeReconciler{}, "@every 1h", "UTC", false, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}
