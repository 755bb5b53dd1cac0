package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-thermostat/migrations"
)

func openTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := openTestRepository(t)
	now := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	e := &Entry{Action: "set_hvac_mode", ThermostatID: "lounge", Source: "api"}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(e.ID, "aud-") {
		t.Errorf("ID = %q, want aud- prefix", e.ID)
	}
	if !e.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, now)
	}
	if e.Outcome != OutcomeApplied {
		t.Errorf("Outcome = %q, want %q", e.Outcome, OutcomeApplied)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("List() = %+v, want one entry", res)
	}
	got := res.Entries[0]
	if got.Subject != "" || got.Details != nil {
		t.Errorf("optional fields = %q / %v, want empty", got.Subject, got.Details)
	}
}

func TestList_FiltersAndPaginates(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)

	seed := []Entry{
		{Action: "set_hvac_mode", Subject: "installer", Details: map[string]any{"hvac_mode": "heat"}},
		{Action: "set_target_temperature", Subject: "installer", Details: map[string]any{"temperature": 21.5}},
		{Action: "set_target_temperature", Subject: "panel", Details: map[string]any{"temperature": 19.0}},
		{Action: "set_preset_mode", Subject: "panel", Outcome: OutcomeRejected, Details: map[string]any{"preset_mode": "boost"}},
	}
	for i := range seed {
		e := seed[i]
		e.ThermostatID = "lounge"
		e.Source = "api"
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &e); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name       string
		filter     Filter
		wantTotal  int
		wantFirst  string
		wantLength int
	}{
		{"all newest first", Filter{}, 4, "set_preset_mode", 4},
		{"by action", Filter{Action: "set_target_temperature"}, 2, "set_target_temperature", 2},
		{"by subject", Filter{Subject: "installer"}, 2, "set_target_temperature", 2},
		{"other thermostat", Filter{ThermostatID: "bedroom"}, 0, "", 0},
		{"page", Filter{Limit: 2, Offset: 1}, 4, "set_target_temperature", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Entries) != tt.wantLength {
				t.Fatalf("Total = %d, len = %d, want %d, %d", res.Total, len(res.Entries), tt.wantTotal, tt.wantLength)
			}
			if tt.wantLength > 0 && res.Entries[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", res.Entries[0].Action, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Subject: "panel", Action: "set_target_temperature"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if v, _ := res.Entries[0].Details["temperature"].(float64); v != 19.0 {
		t.Errorf("details = %v, want temperature 19", res.Entries[0].Details)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := openTestRepository(t)

	tests := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{10, 10},
		{5000, maxLimit},
	}
	for _, tt := range tests {
		res, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != tt.want || res.Offset != 0 {
			t.Errorf("Limit %d -> %d/%d, want %d/0", tt.in, res.Limit, res.Offset, tt.want)
		}
	}
}
