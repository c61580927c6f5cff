package bot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"expiry_tracker/internal/model"
)

const maxDays = 3650

// ParseAddArgs parses arguments for /add.
// Format: [-n <days>] <name...> <YYYY-MM-DD|+<days>|shelf:<days>|never>
func ParseAddArgs(args string, today time.Time) (model.Product, error) {
	parts := strings.Fields(args)

	var timing *int
	if len(parts) >= 2 && parts[0] == "-n" {
		n, err := parseDays(parts[1])
		if err != nil {
			return model.Product{}, fmt.Errorf("invalid notify days: %w", err)
		}
		timing = &n
		parts = parts[2:]
	}

	if len(parts) < 2 {
		return model.Product{}, fmt.Errorf("usage: /add [-n days] <name> <YYYY-MM-DD|+days|shelf:days|never>")
	}

	p := model.Product{
		Name:         strings.Join(parts[:len(parts)-1], " "),
		NotifyTiming: timing,
	}

	when := strings.ToLower(parts[len(parts)-1])
	switch {
	case when == "never" || when == "none":
	case strings.HasPrefix(when, "shelf:"):
		n, err := parseDays(strings.TrimPrefix(when, "shelf:"))
		if err != nil {
			return model.Product{}, fmt.Errorf("invalid shelf life: %w", err)
		}
		p.HasExpirationDate = true
		p.UseShelfLife = true
		p.ShelfLifeDays = &n
	case strings.HasPrefix(when, "+"):
		n, err := parseDays(strings.TrimPrefix(when, "+"))
		if err != nil {
			return model.Product{}, fmt.Errorf("invalid day offset: %w", err)
		}
		p.HasExpirationDate = true
		p.ExpirationDate = today.AddDate(0, 0, n).Format(model.DateLayout)
	default:
		date, err := ParseDateArg(when)
		if err != nil {
			return model.Product{}, err
		}
		p.HasExpirationDate = true
		p.ExpirationDate = date
	}

	return p, nil
}

// ParseDateArg validates a YYYY-MM-DD date and returns it unchanged.
func ParseDateArg(s string) (string, error) {
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return s, nil
}

// ParseIDArg extracts a product ID or ID prefix from a command argument string.
func ParseIDArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("product ID is required")
	}
	return strings.ToLower(parts[0]), nil
}

// ParseOpenArgs extracts a product ID and an optional opening date.
// The date defaults to today.
func ParseOpenArgs(args string, today time.Time) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", "", fmt.Errorf("usage: /open <id> [YYYY-MM-DD]")
	}
	id := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return id, today.Format(model.DateLayout), nil
	}
	date, err := ParseDateArg(parts[1])
	if err != nil {
		return "", "", err
	}
	return id, date, nil
}

// ParseTimingArgs extracts a product ID and its custom notify timing.
// "default" clears the override and yields nil.
func ParseTimingArgs(args string) (string, *int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("usage: /timing <id> <days|default>")
	}
	id := strings.ToLower(parts[0])
	if parts[1] == "default" {
		return id, nil, nil
	}
	n, err := parseDays(parts[1])
	if err != nil {
		return "", nil, err
	}
	return id, &n, nil
}

// ParseLeadTimes parses a comma or space separated list of day counts.
// "default" yields nil. The result is deduplicated and sorted descending.
func ParseLeadTimes(args string) ([]int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return nil, fmt.Errorf("usage: /leadtimes <d,d,...|default>")
	}
	if s == "default" {
		return nil, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := parseDays(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one lead time is required")
	}

	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out, nil
}

func parseDays(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxDays {
		return 0, fmt.Errorf("days must be between 0 and %d, got %q", maxDays, s)
	}
	return n, nil
}
