package config

// This file defines the calendar bootstrap file: the YAML document that
// describes the calendar instance itself (operating window, stake price,
// currency symbol, authority account).  It is read once on startup; when no
// configuration record exists in the store yet, the process resolves the
// currency symbol and saves the definition as the configuration singleton.
// A missing file is created with defaults on first run.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CalendarFile is the on-disk calendar definition.
type CalendarFile struct {
	// PricePerMinute is the stake charged per minute of slot duration, in
	// base units of the resolved currency.
	PricePerMinute uint64 `yaml:"price_per_minute"`

	// UTCOffsetSeconds fixes the calendar's local timezone for its lifetime.
	UTCOffsetSeconds int64 `yaml:"utc_offset_seconds"`

	// DayStart and DayEnd bound the bookable window as local HH:MM:SS
	// clock times.  DayStart must precede DayEnd; that ordering is the
	// operator's responsibility, matching the engine's contract.
	DayStart string `yaml:"day_start"`
	DayEnd   string `yaml:"day_end"`

	// CurrencySymbol is the symbolic asset name resolved to a concrete
	// denom at bootstrap.
	CurrencySymbol string `yaml:"currency_symbol"`

	// Authority is the account allowed to resolve stakes and update config.
	// Slashed stakes are transferred to this account.
	Authority string `yaml:"authority"`

	// Assets is the static symbol -> denom table used when no external
	// asset registry is configured.
	Assets map[string]string `yaml:"assets"`
}

// DefaultCalendarFile returns an in-memory default definition.
func DefaultCalendarFile() *CalendarFile {
	return &CalendarFile{
		PricePerMinute:   10,
		UTCOffsetSeconds: 0,
		DayStart:         "09:00:00",
		DayEnd:           "17:00:00",
		CurrencySymbol:   "unit",
		Authority:        "authority@example.com",
		Assets:           map[string]string{"unit": "unit"},
	}
}

// Normalize fills missing values with defaults so partially-filled files
// still behave correctly.
func (f *CalendarFile) Normalize() {
	if f.DayStart == "" {
		f.DayStart = "09:00:00"
	}
	if f.DayEnd == "" {
		f.DayEnd = "17:00:00"
	}
	if f.CurrencySymbol == "" {
		f.CurrencySymbol = "unit"
	}
	if f.Assets == nil {
		f.Assets = map[string]string{f.CurrencySymbol: f.CurrencySymbol}
	}
}

// LoadCalendarFile reads the definition at path.  When the file does not
// exist, a default definition is written there and returned.
func LoadCalendarFile(path string) (*CalendarFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		def := DefaultCalendarFile()
		if err := saveCalendarFile(path, def); err != nil {
			return nil, err
		}
		return def, nil
	}
	if err != nil {
		return nil, err
	}
	var f CalendarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.Normalize()
	return &f, nil
}

func saveCalendarFile(path string, f *CalendarFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ParseClock converts an HH:MM:SS (or HH:MM) clock string into hour, minute
// and second components.
func ParseClock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
		}
		nums[i] = n
	}
	if nums[0] > 23 || nums[1] > 59 || nums[2] > 59 {
		return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return nums[0], nums[1], nums[2], nil
}
