package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"expiry_tracker/internal/expiry"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/notify"
)

func intPtr(n int) *int { return &n }

func TestParseAddArgs(t *testing.T) {
	today := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		args    string
		want    model.Product
		wantErr bool
	}{
		{
			name: "fixed date",
			args: "Milk 2024-06-17",
			want: model.Product{Name: "Milk", HasExpirationDate: true, ExpirationDate: "2024-06-17"},
		},
		{
			name: "multi-word name",
			args: "Greek yogurt 2% 2024-06-12",
			want: model.Product{Name: "Greek yogurt 2%", HasExpirationDate: true, ExpirationDate: "2024-06-12"},
		},
		{
			name: "relative days",
			args: "Bread +3",
			want: model.Product{Name: "Bread", HasExpirationDate: true, ExpirationDate: "2024-06-13"},
		},
		{
			name: "shelf life",
			args: "Tomato sauce shelf:5",
			want: model.Product{Name: "Tomato sauce", HasExpirationDate: true, UseShelfLife: true, ShelfLifeDays: intPtr(5)},
		},
		{
			name: "never expires",
			args: "Salt never",
			want: model.Product{Name: "Salt"},
		},
		{
			name: "notify override",
			args: "-n 5 Cheese 2024-07-01",
			want: model.Product{Name: "Cheese", HasExpirationDate: true, ExpirationDate: "2024-07-01", NotifyTiming: intPtr(5)},
		},
		{
			name:    "missing expiry",
			args:    "Milk",
			wantErr: true,
		},
		{
			name:    "bad date",
			args:    "Milk 2024-13-40",
			wantErr: true,
		},
		{
			name:    "negative shelf life",
			args:    "Sauce shelf:-2",
			wantErr: true,
		},
		{
			name:    "bad notify days",
			args:    "-n soon Milk 2024-06-17",
			wantErr: true,
		},
		{
			name:    "empty args",
			args:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddArgs(tt.args, today)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAddArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    string
		wantErr bool
	}{
		{name: "prefix", args: "a1b2", want: "a1b2"},
		{name: "uppercase is folded", args: "A1B2C3", want: "a1b2c3"},
		{name: "extra args ignored", args: "abc def", want: "abc"},
		{name: "empty", args: "", wantErr: true},
		{name: "spaces only", args: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIDArg() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOpenArgs(t *testing.T) {
	today := time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name     string
		args     string
		wantID   string
		wantDate string
		wantErr  bool
	}{
		{name: "defaults to today", args: "abc", wantID: "abc", wantDate: "2024-06-10"},
		{name: "explicit date", args: "abc 2024-06-01", wantID: "abc", wantDate: "2024-06-01"},
		{name: "bad date", args: "abc yesterday", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, date, err := ParseOpenArgs(tt.args, today)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDate, date); diff != "" {
				t.Errorf("date mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTimingArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantID     string
		wantTiming *int
		wantErr    bool
	}{
		{name: "days", args: "abc 5", wantID: "abc", wantTiming: intPtr(5)},
		{name: "zero days", args: "abc 0", wantID: "abc", wantTiming: intPtr(0)},
		{name: "default", args: "abc default", wantID: "abc"},
		{name: "negative", args: "abc -1", wantErr: true},
		{name: "not a number", args: "abc soon", wantErr: true},
		{name: "missing days", args: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, timing, err := ParseTimingArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantTiming, timing); diff != "" {
				t.Errorf("timing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLeadTimes(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    []int
		wantErr bool
	}{
		{name: "comma separated", args: "7,3,1,0", want: []int{7, 3, 1, 0}},
		{name: "unordered with duplicates", args: "1, 14 1 3", want: []int{14, 3, 1}},
		{name: "default", args: "default", want: nil},
		{name: "negative", args: "3,-1", wantErr: true},
		{name: "garbage", args: "a,b", wantErr: true},
		{name: "only separators", args: ",,", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLeadTimes(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLeadTimes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		msg  notify.Message
		want string
	}{
		{
			name: "title and body",
			msg:  notify.Message{Title: "Milk expires today", Body: "Use it today (2024-06-10)."},
			want: "Milk expires today\n\nUse it today (2024-06-10).",
		},
		{
			name: "title only",
			msg:  notify.Message{Title: "Milk expires today"},
			want: "Milk expires today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatNotification(tt.msg)); diff != "" {
				t.Errorf("FormatNotification() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatProductList(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		got := FormatProductList(nil)
		if !strings.Contains(got, "No products found") {
			t.Errorf("expected empty message, got: %s", got)
		}
	})

	t.Run("entries", func(t *testing.T) {
		products := []model.Product{
			{ID: "11111111-aaaa", Name: "Rice"},
			{ID: "22222222-bbbb", Name: "Milk", HasExpirationDate: true, ExpirationDate: "2024-06-09"},
			{ID: "33333333-cccc", Name: "Eggs", HasExpirationDate: true, ExpirationDate: "2024-06-11"},
		}
		got := FormatProductList(expiry.SortByUrgency(products, now))

		for _, substr := range []string{
			"22222222 Milk [EXPIRED]",
			"expired yesterday",
			"33333333 Eggs [soon]",
			"expires tomorrow",
			"11111111 Rice [ok]",
			"no expiration",
		} {
			if !strings.Contains(got, substr) {
				t.Errorf("missing %q in:\n%s", substr, got)
			}
		}
		if strings.Index(got, "Milk") > strings.Index(got, "Eggs") || strings.Index(got, "Eggs") > strings.Index(got, "Rice") {
			t.Errorf("products not ordered by urgency:\n%s", got)
		}
	})
}

func TestFormatProductInfo(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("opened shelf-life product", func(t *testing.T) {
		p := model.Product{
			ID:                "abc-123",
			Name:              "Sauce",
			HasExpirationDate: true,
			UseShelfLife:      true,
			ShelfLifeDays:     intPtr(5),
			OpenedDate:        "2024-06-07",
			NotifyTiming:      intPtr(1),
		}
		got := FormatProductInfo(expiry.Evaluate(p, now), "Condiments", "Fridge")

		for _, substr := range []string{
			"Sauce [soon]",
			"ID: abc-123",
			"expires in 2 days",
			"Shelf life: 5 days after opening",
			"Opened: 2024-06-07",
			"Use by: 2024-06-12",
			"Reminder: 1 day before",
			"Category: Condiments",
			"Location: Fridge",
		} {
			if !strings.Contains(got, substr) {
				t.Errorf("missing %q in:\n%s", substr, got)
			}
		}
	})

	t.Run("fixed date without extras", func(t *testing.T) {
		p := model.Product{ID: "def", Name: "Milk", HasExpirationDate: true, ExpirationDate: "2024-06-20"}
		got := FormatProductInfo(expiry.Evaluate(p, now), "", "")

		for _, substr := range []string{"Expires: 2024-06-20", "Reminder: default lead times"} {
			if !strings.Contains(got, substr) {
				t.Errorf("missing %q in:\n%s", substr, got)
			}
		}
		if strings.Contains(got, "Category:") || strings.Contains(got, "Location:") {
			t.Errorf("unexpected category or location in:\n%s", got)
		}
	})
}

func TestFormatSettings(t *testing.T) {
	tests := []struct {
		name string
		st   model.Settings
		perm model.Permission
		want string
	}{
		{
			name: "defaults",
			st:   model.Settings{},
			perm: model.PermissionDefault,
			want: "Notifications: off\nPermission: default\nLead times: 7, 3, 1, 0 days (default)",
		},
		{
			name: "custom lead times",
			st:   model.Settings{NotificationsEnabled: true, LeadTimes: []int{14, 2}},
			perm: model.PermissionGranted,
			want: "Notifications: on\nPermission: granted\nLead times: 14, 2 days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatSettings(&tt.st, tt.perm)); diff != "" {
				t.Errorf("FormatSettings() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if diff := cmp.Diff("0f8fad5b", ShortID("0f8fad5b-d9cb-469f-a165-70867728950e")); diff != "" {
		t.Errorf("ShortID() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("abc", ShortID("abc")); diff != "" {
		t.Errorf("ShortID() mismatch (-want +got):\n%s", diff)
	}
}
