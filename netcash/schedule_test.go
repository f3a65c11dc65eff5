package netcash

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextCollectionDate_SkipsWeekends(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		daysAhead int
		want      time.Time
	}{
		{"weekday to weekday", date(2024, time.March, 4), 2, date(2024, time.March, 6)},       // Mon +2 -> Wed
		{"crosses a weekend", date(2024, time.February, 29), 2, date(2024, time.March, 4)},    // Thu +2 -> Mon
		{"starts on saturday", date(2024, time.March, 2), 1, date(2024, time.March, 4)},       // Sat +1 -> Mon
		{"friday plus one", date(2024, time.March, 1), 1, date(2024, time.March, 4)},          // Fri +1 -> Mon
		{"zero days ahead", date(2024, time.March, 4), 0, date(2024, time.March, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextCollectionDate(tt.from, tt.daysAhead)
			if !got.Equal(tt.want) {
				t.Errorf("NextCollectionDate(%v, %d) = %v, want %v", tt.from, tt.daysAhead, got, tt.want)
			}
		})
	}
}

func TestAdjustForWeekend(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"saturday moves to monday", date(2024, time.March, 2), date(2024, time.March, 4)},
		{"sunday moves to monday", date(2024, time.March, 3), date(2024, time.March, 4)},
		{"weekday unchanged", date(2024, time.March, 5), date(2024, time.March, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustForWeekend(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("AdjustForWeekend(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubmissionDate_SaturdayStrike(t *testing.T) {
	// Strike Sat 2024-03-02 adjusts to Mon 2024-03-04; three business days
	// back lands on Wed 2024-02-28.
	got := SubmissionDate(date(2024, time.March, 2))
	want := date(2024, time.February, 28)
	if !got.Equal(want) {
		t.Fatalf("SubmissionDate = %v, want %v", got, want)
	}
}

func TestSubmissionDate_MidweekStrike(t *testing.T) {
	// Strike Thu 2024-03-07: back over Wed, Tue, Mon -> 2024-03-04.
	got := SubmissionDate(date(2024, time.March, 7))
	want := date(2024, time.March, 4)
	if !got.Equal(want) {
		t.Fatalf("SubmissionDate = %v, want %v", got, want)
	}
}

func TestIsSubmissionDay(t *testing.T) {
	strike := date(2024, time.March, 2)
	if !IsSubmissionDay(date(2024, time.February, 28), strike) {
		t.Error("expected 2024-02-28 to be the submission day for a 2024-03-02 strike")
	}
	if IsSubmissionDay(date(2024, time.February, 29), strike) {
		t.Error("2024-02-29 must not be the submission day for a 2024-03-02 strike")
	}
	// Time-of-day must not matter.
	if !IsSubmissionDay(time.Date(2024, time.February, 28, 17, 30, 0, 0, time.UTC), strike) {
		t.Error("submission day check must ignore time of day")
	}
}
