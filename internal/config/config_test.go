package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var compareLocation = cmp.Comparer(func(a, b *time.Location) bool {
	return a.String() == b.String()
})

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
	"CHECK_INTERVAL", "TIMEZONE", "NOTIFY_RATE",
}

func defaults(token string) *Config {
	return &Config{
		TelegramBotToken: token,
		DatabasePath:     "./data/expiry.db",
		LogLevel:         "info",
		CheckInterval:    time.Hour,
		Location:         time.Local,
		NotifyRate:       20,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: defaults("test-token"),
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"DATABASE_PATH":      "/tmp/expiry.db",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"CHECK_INTERVAL":     "30m",
				"TIMEZONE":           "UTC",
				"NOTIFY_RATE":        "5",
			},
			want: &Config{
				TelegramBotToken: "tok",
				DatabasePath:     "/tmp/expiry.db",
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
				CheckInterval:    30 * time.Minute,
				Location:         time.UTC,
				NotifyRate:       5,
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: func() *Config {
				c := defaults("tok")
				c.AllowedUsers = []int64{10, 20}
				return c
			}(),
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ALLOWED_USERS": "123,abc"},
			wantErr: true,
		},
		{
			name:    "invalid interval",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "CHECK_INTERVAL": "hourly"},
			wantErr: true,
		},
		{
			name:    "interval too short",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "CHECK_INTERVAL": "5s"},
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "non-positive rate",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "NOTIFY_RATE": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear relevant env vars
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, compareLocation); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadCLIWithoutToken(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}

	got, err := LoadCLI()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(defaults(""), got, compareLocation); diff != "" {
		t.Errorf("LoadCLI() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
