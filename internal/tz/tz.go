// Package tz resolves declared zone identifiers and converts between absolute
// instants and the wall-clock time a user sees in their zone.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrUnknownZone = errors.New("tz: unknown zone")

// LocalLayout is the wall-clock format users enter deadlines in.
const LocalLayout = "2006-01-02T15:04"

// Resolver loads IANA zones and caches them by name.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*time.Location
}

func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*time.Location)}
}

var shared = NewResolver()

// Validate reports whether name would resolve, under the same rules as
// Resolver.Resolve.
func Validate(name string) error {
	_, err := shared.Resolve(name)
	return err
}

// Resolve maps a declared zone to a location. An empty name resolves to UTC.
// "Local" is rejected: a user's zone never depends on the host.
func (r *Resolver) Resolve(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}

	r.mu.RLock()
	loc, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	r.mu.Lock()
	r.cache[name] = loc
	r.mu.Unlock()
	return loc, nil
}

// Reinterpret keeps the wall clock instant shows in from and returns the
// instant that shows the same wall clock in to.
//
// Wall clocks that do not exist in to (spring-forward gaps) are normalized by
// time.Date; repeated wall clocks (fall-back) resolve to one of the two
// candidates.
func Reinterpret(instant time.Time, from, to *time.Location) time.Time {
	l := instant.In(from)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), to).UTC()
}

// ParseLocal reads a LocalLayout value as wall-clock time in loc.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	out, err := time.ParseInLocation(LocalLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("tz: parse local time %q: %w", value, err)
	}
	return out.UTC(), nil
}

// FormatLocal renders instant as the wall clock shown in loc.
func FormatLocal(instant time.Time, loc *time.Location) string {
	return instant.In(loc).Format(LocalLayout)
}

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date instant falls on in loc.
func DateOf(instant time.Time, loc *time.Location) Date {
	y, m, d := instant.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays moves the date by n calendar days, independent of any zone offset.
func (d Date) AddDays(n int) Date {
	y, m, dd := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC).Date()
	return Date{Year: y, Month: m, Day: dd}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
