package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCalendarFileFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")

	f, err := LoadCalendarFile(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if f.DayStart != "09:00:00" || f.DayEnd != "17:00:00" {
		t.Errorf("defaults = %q..%q", f.DayStart, f.DayEnd)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default file not written: %v", err)
	}
}

func TestLoadCalendarFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	if err := os.WriteFile(path, []byte("price_per_minute: 25\nauthority: boss@example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := LoadCalendarFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.PricePerMinute != 25 || f.Authority != "boss@example.com" {
		t.Errorf("explicit fields lost: %+v", f)
	}
	if f.DayStart == "" || f.CurrencySymbol == "" || f.Assets == nil {
		t.Errorf("normalize left gaps: %+v", f)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		h, m, s int
		ok      bool
	}{
		{"09:00:00", 9, 0, 0, true},
		{"17:30", 17, 30, 0, true},
		{"23:59:59", 23, 59, 59, true},
		{"24:00:00", 0, 0, 0, false},
		{"bogus", 0, 0, 0, false},
		{"10:61", 0, 0, 0, false},
	}
	for _, tc := range cases {
		h, m, s, err := ParseClock(tc.in)
		if tc.ok && (err != nil || h != tc.h || m != tc.m || s != tc.s) {
			t.Errorf("ParseClock(%q) = %d:%d:%d, %v", tc.in, h, m, s, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseClock(%q): expected error", tc.in)
		}
	}
}
