package timeparse

import (
	"testing"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) // Sunday

func TestParse_Increments(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want time.Duration
	}{
		{"minutes only", "10m", 10 * time.Minute},
		{"hours and minutes", "1h30m", 90 * time.Minute},
		{"days only", "2d", 48 * time.Hour},
		{"seconds only", "45s", 45 * time.Second},
		{"all units", "1d2h3m4s", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second},
		{"reversed order", "30m1h", 90 * time.Minute},
		{"repeated unit sums", "1h1h", 2 * time.Hour},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.expr, testNow, time.UTC)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if want := testNow.Add(tt.want); !got.TargetAt.Equal(want) {
				t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
			}
			if got.Source != domain.SourceIncrement {
				t.Errorf("Source = %q, want %q", got.Source, domain.SourceIncrement)
			}
			if got.Message != DefaultMessage {
				t.Errorf("Message = %q, want default %q", got.Message, DefaultMessage)
			}
		})
	}
}

func TestParse_IncrementWithMessage(t *testing.T) {
	p := NewParser()

	got, err := p.Parse("1h30m check oven", testNow, time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if want := testNow.Add(5400 * time.Second); !got.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
	}
	if got.Message != "check oven" {
		t.Errorf("Message = %q, want %q", got.Message, "check oven")
	}
}

func TestParse_ZeroDuration(t *testing.T) {
	tests := []string{"0m", "0h0m", "0d0h0m0s"}

	p := NewParser().WithNaturalLanguage()
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := p.Parse(expr, testNow, time.UTC)
			reason, ok := ReasonOf(err)
			if !ok {
				t.Fatalf("Parse(%q) error = %v, want ParseError", expr, err)
			}
			if reason != ReasonZeroDuration {
				t.Errorf("reason = %q, want %q", reason, ReasonZeroDuration)
			}
		})
	}
}

func TestParse_IncrementOverflowRejected(t *testing.T) {
	// Counts this large used to wrap int64 nanoseconds and resolve to a
	// small bogus delay ("213504d" came out near 25 minutes).
	tests := []struct {
		name string
		expr string
	}{
		{"wraps positive", "213504d check oven"},
		{"wraps negative", "106752d"},
		{"single unit over cap", "40000000000000s"},
		{"count exceeds int64", "99999999999999999999d"},
		{"units sum over cap", "36499d876000h"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.expr, testNow, time.UTC)
			reason, ok := ReasonOf(err)
			if !ok {
				t.Fatalf("Parse(%q) = (%v, %v), want ParseError", tt.expr, got.TargetAt, err)
			}
			if reason != ReasonBeyondMaxHorizon {
				t.Errorf("reason = %q, want %q", reason, ReasonBeyondMaxHorizon)
			}
		})
	}
}

func TestParse_IncrementLargeButSane(t *testing.T) {
	p := NewParser()

	got, err := p.Parse("3650d", testNow, time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if want := testNow.Add(3650 * 24 * time.Hour); !got.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
	}
}

func TestParse_Absolute(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	p := NewParser()
	got, err := p.Parse("2025-12-24 18:30 wrap presents", testNow, loc)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	want := time.Date(2025, 12, 24, 18, 30, 0, 0, loc)
	if !got.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
	}
	if got.Source != domain.SourceAbsolute {
		t.Errorf("Source = %q, want %q", got.Source, domain.SourceAbsolute)
	}
	if got.Message != "wrap presents" {
		t.Errorf("Message = %q, want %q", got.Message, "wrap presents")
	}
}

func TestParse_AbsolutePast(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("2025-01-01 00:00", testNow, time.UTC)
	reason, ok := ReasonOf(err)
	if !ok {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if reason != ReasonPastInstant {
		t.Errorf("reason = %q, want %q", reason, ReasonPastInstant)
	}
}

func TestParse_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"plain text", "hello there"},
		{"bare number", "42 things"},
		{"invalid absolute values", "2025-13-40 25:61 nope"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.expr, testNow, time.UTC)
			reason, ok := ReasonOf(err)
			if !ok {
				t.Fatalf("Parse(%q) error = %v, want ParseError", tt.expr, err)
			}
			if reason != ReasonNoMatch {
				t.Errorf("reason = %q, want %q", reason, ReasonNoMatch)
			}
		})
	}
}

func TestParse_NaturalWeekdayNeverPast(t *testing.T) {
	// testNow is Sunday 2025-06-01 12:00 UTC. Every weekday must resolve
	// to a strictly future instant; days earlier in the week roll forward.
	days := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

	p := NewParser().WithNaturalLanguage()
	for _, day := range days {
		t.Run(day, func(t *testing.T) {
			got, err := p.Parse(day+" standup", testNow, time.UTC)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", day, err)
			}
			if !got.TargetAt.After(testNow) {
				t.Errorf("TargetAt = %v, not after now %v", got.TargetAt, testNow)
			}
			if got.TargetAt.Sub(testNow) > 8*24*time.Hour {
				t.Errorf("TargetAt = %v, more than a week out", got.TargetAt)
			}
			if got.Message != "standup" {
				t.Errorf("Message = %q, want %q", got.Message, "standup")
			}
		})
	}
}

func TestParse_NaturalPhrases(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    time.Time
		message string
	}{
		{
			"tomorrow with time",
			"tomorrow 3pm call dentist",
			time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
			"call dentist",
		},
		{
			"tomorrow default hour",
			"tomorrow",
			time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			DefaultMessage,
		},
		{
			"month day with time",
			"may 18 10am renew passport",
			time.Date(2026, 5, 18, 10, 0, 0, 0, time.UTC), // May 18 already passed, rolls a year
			"renew passport",
		},
		{
			"future month day",
			"dec 24 9am",
			time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC),
			DefaultMessage,
		},
		{
			"clock only future",
			"15:30 tea break",
			time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC),
			"tea break",
		},
		{
			"clock only past rolls to tomorrow",
			"8am tea break",
			time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
			"tea break",
		},
	}

	p := NewParser().WithNaturalLanguage()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.expr, testNow, time.UTC)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if !got.TargetAt.Equal(tt.want) {
				t.Errorf("TargetAt = %v, want %v", got.TargetAt, tt.want)
			}
			if got.Source != domain.SourceNatural {
				t.Errorf("Source = %q, want %q", got.Source, domain.SourceNatural)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want %q", got.Message, tt.message)
			}
		})
	}
}

func TestParse_IncrementTokenSuppressesNatural(t *testing.T) {
	// "10m" fully matches the increment pattern, so the natural-language
	// grammar must never see it even when enabled.
	p := NewParser().WithNaturalLanguage()

	got, err := p.Parse("10m water plants", testNow, time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.Source != domain.SourceIncrement {
		t.Errorf("Source = %q, want %q", got.Source, domain.SourceIncrement)
	}
	if want := testNow.Add(10 * time.Minute); !got.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
	}
}

func TestParse_NaturalDisabledByDefault(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("tomorrow 3pm", testNow, time.UTC)
	reason, ok := ReasonOf(err)
	if !ok || reason != ReasonNoMatch {
		t.Errorf("natural phrase without WithNaturalLanguage: err = %v, want NoMatch", err)
	}
}

func TestParse_TargetIsUTC(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	p := NewParser()
	got, err := p.Parse("2025-07-01 09:00", testNow, loc)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.TargetAt.Location() != time.UTC {
		t.Errorf("TargetAt location = %v, want UTC", got.TargetAt.Location())
	}
	// 09:00 JST == 00:00 UTC
	want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if !got.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", got.TargetAt, want)
	}
}
