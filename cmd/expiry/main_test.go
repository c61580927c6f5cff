package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"expiry_tracker/internal/model"
	"expiry_tracker/internal/storage"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func useMemoryDB(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "info")
}

func useFileDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expiry.db")
	t.Setenv("DATABASE_PATH", path)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "info")
	return path
}

func TestAddCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantOut string
		wantErr string
	}{
		{
			name:    "printed date",
			args:    []string{"add", "--name", "Milk", "--expires", "2099-06-17"},
			wantOut: " Milk: ",
		},
		{
			name:    "shelf life",
			args:    []string{"add", "--name", "Sauce", "--shelf-life", "5"},
			wantOut: " Sauce: ",
		},
		{
			name:    "never expires",
			args:    []string{"add", "--name", "Salt", "--never"},
			wantOut: " Salt: ",
		},
		{
			name:    "no expiry mode",
			args:    []string{"add", "--name", "Milk"},
			wantErr: "one of --expires, --shelf-life or --never is required",
		},
		{
			name:    "date and never together",
			args:    []string{"add", "--name", "Milk", "--expires", "2099-06-17", "--never"},
			wantErr: "none of the others can be",
		},
		{
			name:    "shelf life and date together",
			args:    []string{"add", "--name", "Milk", "--shelf-life", "5", "--expires", "2099-06-17"},
			wantErr: "none of the others can be",
		},
		{
			name:    "missing name",
			args:    []string{"add", "--never"},
			wantErr: "--name is required",
		},
		{
			name:    "bad date",
			args:    []string{"add", "--name", "Milk", "--expires", "17.06.2099"},
			wantErr: `invalid --expires "17.06.2099"`,
		},
		{
			name:    "negative notify days",
			args:    []string{"add", "--name", "Milk", "--never", "--notify-days", "-1"},
			wantErr: "--notify-days must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMemoryDB(t)

			out, _, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output %q does not contain %q", out, tt.wantOut)
			}
		})
	}
}

func TestAddCmdStoresProduct(t *testing.T) {
	path := useFileDB(t)

	if _, _, err := execute(t, "add", "--name", "Sauce", "--shelf-life", "5", "--notify-days", "1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	store, err := storage.NewSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	products, err := store.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}

	type stored struct {
		Name         string
		HasDate      bool
		UseShelfLife bool
		ShelfLife    int
		NotifyTiming int
	}
	p := products[0]
	got := stored{Name: p.Name, HasDate: p.HasExpirationDate, UseShelfLife: p.UseShelfLife}
	if p.ShelfLifeDays != nil {
		got.ShelfLife = *p.ShelfLifeDays
	}
	if p.NotifyTiming != nil {
		got.NotifyTiming = *p.NotifyTiming
	}
	want := stored{Name: "Sauce", HasDate: true, UseShelfLife: true, ShelfLife: 5, NotifyTiming: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored product mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckCmdDryRun(t *testing.T) {
	path := useFileDB(t)

	expires := time.Now().UTC().AddDate(0, 0, 7).Format(model.DateLayout)
	if _, _, err := execute(t, "add", "--name", "Milk", "--expires", expires); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, stderr, err := execute(t, "check", "--dry-run")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if diff := cmp.Diff("informational Milk expires in 7 days\n", out); diff != "" {
		t.Errorf("dry run output mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "dry run finished") {
		t.Errorf("stderr %q does not log the finished dry run", stderr)
	}

	store, err := storage.NewSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ListNotifiedKeys(context.Background())
	if err != nil {
		t.Fatalf("list notified keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("dry run persisted keys %v", keys)
	}
}

func TestLogLevelFromConfig(t *testing.T) {
	tests := []struct {
		level   string
		wantLog bool
	}{
		{level: "info", wantLog: true},
		{level: "DEBUG", wantLog: true},
		{level: "error", wantLog: false},
		{level: "bogus", wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			useMemoryDB(t)
			t.Setenv("LOG_LEVEL", tt.level)

			_, stderr, err := execute(t, "prune")
			if err != nil {
				t.Fatalf("prune: %v", err)
			}
			if got := strings.Contains(stderr, "pruned notified keys"); got != tt.wantLog {
				t.Errorf("logged = %v, want %v (stderr %q)", got, tt.wantLog, stderr)
			}
		})
	}
}
