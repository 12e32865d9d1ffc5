package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validConfig() *Config {
	return &Config{
		Database: Database{
			DBHost: "localhost", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "db",
			DBSSLMode: "disable", DBMaxConns: 10, DBMinConns: 1,
		},
		BotMaxInflight:          8,
		BotUpdateTimeoutSeconds: 30,
		ReferralJoinBonus:       decimal.NewFromInt(3),
		ReferralCodeLength:      8,
		ReferralCodeAttempts:    20,
		ReferralDefaultProgram:  "DIRECT",
		CurrencyRate:            decimal.NewFromInt(90),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero bonus", mutate: func(c *Config) { c.ReferralJoinBonus = decimal.Zero }, wantErr: true},
		{name: "short code", mutate: func(c *Config) { c.ReferralCodeLength = 4 }, wantErr: true},
		{name: "no attempts", mutate: func(c *Config) { c.ReferralCodeAttempts = 0 }, wantErr: true},
		{name: "unknown program", mutate: func(c *Config) { c.ReferralDefaultProgram = "PYRAMID" }, wantErr: true},
		{name: "multi level program", mutate: func(c *Config) { c.ReferralDefaultProgram = "MULTI_LEVEL" }},
		{name: "negative rate", mutate: func(c *Config) { c.CurrencyRate = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "bad pool bounds", mutate: func(c *Config) { c.DBMinConns = 20 }, wantErr: true},
		{name: "no inflight", mutate: func(c *Config) { c.BotMaxInflight = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseInt64CSV(t *testing.T) {
	ids, err := parseInt64CSV(" 1, 22 ,333")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 22 || ids[2] != 333 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if ids, err := parseInt64CSV("  "); err != nil || ids != nil {
		t.Fatalf("expected empty result, got %v, %v", ids, err)
	}

	if _, err := parseInt64CSV("1,abc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := validConfig()
	cfg.AdminIDs = []int64{10, 20}
	if !cfg.IsAdmin(20) {
		t.Fatal("expected 20 to be admin")
	}
	if cfg.IsAdmin(30) {
		t.Fatal("expected 30 not to be admin")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := validConfig()
	want := "postgres://u:p@localhost:5432/db?sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Fatalf("DatabaseDSN() = %q, want %q", got, want)
	}
}
