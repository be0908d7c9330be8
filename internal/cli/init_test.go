package cli

import (
	"context"
	"log/slog"
	"testing"

	"ledger/internal/config"
	"ledger/internal/storage"
)

func TestStoreOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    storage.Dialect
		wantErr bool
	}{
		{name: "sqlite", cfg: config.Config{DBDriver: "sqlite", SQLiteDBPath: "/tmp/l.db"}, want: storage.SQLite},
		{name: "postgres", cfg: config.Config{DBDriver: "postgres", DatabaseURL: "postgres://x/y"}, want: storage.Postgres},
		{name: "unknown", cfg: config.Config{DBDriver: "mysql"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := StoreOptions(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("StoreOptions: %v", err)
			}
			if opts.Dialect != tt.want {
				t.Fatalf("dialect = %q, want %q", opts.Dialect, tt.want)
			}
			if opts.SQLitePath != tt.cfg.SQLiteDBPath || opts.DatabaseURL != tt.cfg.DatabaseURL {
				t.Fatalf("unexpected options %+v", opts)
			}
		})
	}
}

func TestSetupLoggerSetsComponent(t *testing.T) {
	l := SetupLogger("debug", "json")
	if l.Component() != "app" {
		t.Fatalf("component = %q", l.Component())
	}
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level should be enabled")
	}
}
