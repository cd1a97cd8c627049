// Package dateutils provides common date and time operations used throughout the application.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Common date format constants used throughout the application
const (
	DateLayoutISO        = "2006-01-02"
	DateLayoutFull       = "2006-01-02 15:04:05"
	DateLayoutFullShort  = "2006-01-02 15:04"
	DateLayoutSlash      = "2006/01/02"
	DateLayoutSlashFull  = "2006/01/02 15:04:05"
	DateLayoutSlashShort = "2006/1/2 15:04"
	DateLayoutEuropean   = "02.01.2006"
	DateLayoutUS         = "01/02/2006"
	DateLayoutRFC3339    = time.RFC3339
	DateLayoutMonth      = "2006-01"
)

// CommonFormats is the list of layouts tried when a provider does not declare its own.
var CommonFormats = []string{
	DateLayoutFull,
	DateLayoutFullShort,
	DateLayoutSlashFull,
	DateLayoutSlashShort,
	DateLayoutRFC3339,
	DateLayoutISO,
	DateLayoutSlash,
	DateLayoutEuropean,
	DateLayoutUS,
}

var whitespace = regexp.MustCompile(`\s+`)

// CleanDateString removes unwanted characters and normalizes a date string.
// Exports often wrap cells in tabs or non-breaking spaces.
func CleanDateString(dateStr string) string {
	dateStr = strings.ReplaceAll(dateStr, "\u00a0", " ")
	dateStr = strings.Trim(dateStr, " \t\r\n\"'")
	return whitespace.ReplaceAllString(dateStr, " ")
}

// ParseTimestamp parses value with the first matching layout. When layouts is
// empty CommonFormats is used. The result is always the wall-clock time shown
// in value, placed in loc (UTC when nil); an explicit offset is discarded so
// that zoned and naive rows sort by the clock time they display.
func ParseTimestamp(value string, layouts []string, loc *time.Location) (time.Time, error) {
	cleaned := CleanDateString(value)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if len(layouts) == 0 {
		layouts = CommonFormats
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", value)
}

// StartOfMonth returns the first day of the month for a given date
func StartOfMonth(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
}

// EndOfMonth returns the last day of the month for a given date
func EndOfMonth(date time.Time) time.Time {
	return StartOfMonth(date).AddDate(0, 1, -1)
}

// MonthRange returns the first instant of the month named by period
// ("2006-01") and the first instant of the following month. ok is false when
// period does not name a month.
func MonthRange(period string) (start, end time.Time, ok bool) {
	month, err := time.ParseInLocation(DateLayoutMonth, strings.TrimSpace(period), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return StartOfMonth(month), EndOfMonth(month).AddDate(0, 0, 1), true
}

// Span returns the earliest and latest of the given times. Both are zero when
// times is empty.
func Span(times []time.Time) (first, last time.Time) {
	for i, t := range times {
		if i == 0 || t.Before(first) {
			first = t
		}
		if i == 0 || t.After(last) {
			last = t
		}
	}
	return first, last
}
