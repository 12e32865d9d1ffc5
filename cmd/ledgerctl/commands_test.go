package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/features/reconcile"
)

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hash-password", "secret"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "$argon2id$v=19$") {
		t.Errorf("unexpected hash %q", out.String())
	}
}

func TestProjectCommandRequiresOneTarget(t *testing.T) {
	for _, args := range [][]string{
		{"project"},
		{"project", "--all", "--user", "5"},
	} {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestPrintDrifts(t *testing.T) {
	var out bytes.Buffer
	printDrifts(&out, nil)
	if !strings.Contains(out.String(), "Расхождений нет") {
		t.Errorf("got %q", out.String())
	}

	out.Reset()
	printDrifts(&out, []reconcile.Drift{{
		ProfileID: 1,
		UserID:    42,
		Stored:    decimal.NewFromInt(10),
		Ledger:    decimal.NewFromInt(7),
	}})
	if !strings.Contains(out.String(), "delta=3.00") {
		t.Errorf("got %q", out.String())
	}
}
