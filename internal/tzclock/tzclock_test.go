package tzclock

import (
	"testing"
	"time"
)

func TestNewClockInvalidTimezone(t *testing.T) {
	_, err := NewClock("Not/AZone")
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestNewClockValid(t *testing.T) {
	c, err := NewClock("Europe/Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "Europe/Berlin" {
		t.Errorf("got name %q", c.Name())
	}
}

func TestDayBoundsSpringForward(t *testing.T) {
	c, err := NewClock("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	// 2024-03-31 is the spring-forward day in Europe/Berlin (23h day).
	day := time.Date(2024, 3, 31, 12, 0, 0, 0, c.Location())
	start, end := c.DayBounds(day)
	if got := end.Sub(start); got != 23*time.Hour {
		t.Errorf("expected 23h day, got %v", got)
	}
}

func TestDayBoundsFallBack(t *testing.T) {
	c, err := NewClock("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	// 2024-10-27 is the fall-back day in Europe/Berlin (25h day).
	day := time.Date(2024, 10, 27, 12, 0, 0, 0, c.Location())
	start, end := c.DayBounds(day)
	if got := end.Sub(start); got != 25*time.Hour {
		t.Errorf("expected 25h day, got %v", got)
	}
}

func TestHoursInDayCountsMatchDSTLength(t *testing.T) {
	c, err := NewClock("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	spring := time.Date(2024, 3, 31, 0, 0, 0, 0, c.Location())
	if got := len(c.HoursInDay(spring)); got != 23 {
		t.Errorf("spring-forward day: got %d hour entries, want 23", got)
	}

	fall := time.Date(2024, 10, 27, 0, 0, 0, 0, c.Location())
	if got := len(c.HoursInDay(fall)); got != 25 {
		t.Errorf("fall-back day: got %d hour entries, want 25", got)
	}

	ordinary := time.Date(2024, 6, 15, 0, 0, 0, 0, c.Location())
	if got := len(c.HoursInDay(ordinary)); got != 24 {
		t.Errorf("ordinary day: got %d hour entries, want 24", got)
	}
}

func TestHourKeyDistinguishesHours(t *testing.T) {
	c, err := NewClock("UTC")
	if err != nil {
		t.Fatal(err)
	}
	t1 := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC)
	t3 := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	if c.HourKey(t1) != c.HourKey(t2) {
		t.Error("same-hour timestamps should share a key")
	}
	if c.HourKey(t1) == c.HourKey(t3) {
		t.Error("different-hour timestamps should not share a key")
	}
}

func TestWeekBoundsStartsMonday(t *testing.T) {
	c, err := NewClock("UTC")
	if err != nil {
		t.Fatal(err)
	}
	// 2024-07-31 is a Wednesday.
	wed := time.Date(2024, 7, 31, 15, 0, 0, 0, c.Location())
	start, end := c.WeekBounds(wed)
	if start.Weekday() != time.Monday {
		t.Errorf("expected Monday start, got %v", start.Weekday())
	}
	if end.Sub(start) != 7*24*time.Hour {
		t.Errorf("expected 7-day week span, got %v", end.Sub(start))
	}
}

func TestMonthBounds(t *testing.T) {
	c, err := NewClock("UTC")
	if err != nil {
		t.Fatal(err)
	}
	mid := time.Date(2024, 2, 15, 12, 0, 0, 0, c.Location())
	start, end := c.MonthBounds(mid)
	if start.Day() != 1 || start.Month() != time.February {
		t.Errorf("unexpected month start: %v", start)
	}
	if end.Month() != time.March {
		t.Errorf("unexpected month end: %v", end)
	}
}
