// Package profile defines the fixed roster of simulated users and their
// behavioral parameters. The registry is read-only after construction;
// workers only ever consume it.
package profile

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// FileType is a category of synthetic payloads a user uploads.
type FileType string

const (
	TypeCode      FileType = "code"
	TypeDocuments FileType = "documents"
	TypeImages    FileType = "images"
	TypeArchives  FileType = "archives"
	TypeMedia     FileType = "media"
)

// PeakWindow is an inclusive time-of-day range, possibly wrapping midnight
// (Start > End means the window spans it, e.g. 22-4).
type PeakWindow struct {
	Start int
	End   int
}

// Contains reports whether hour falls inside the window.
func (w PeakWindow) Contains(hour int) bool {
	if w.Start > w.End {
		return hour >= w.Start || hour <= w.End
	}
	return hour >= w.Start && hour <= w.End
}

// UserProfile describes one simulated user. Immutable once registered.
type UserProfile struct {
	ID                 string
	Description        string
	Bucket             string
	TimezoneOffset     float64 // hours relative to UTC
	Peak               PeakWindow
	ActivityMultiplier float64
	Preferences        map[FileType]float64
}

// LocalHour converts a wall-clock instant into the user's local hour for
// peak-window evaluation. Fractional offsets (e.g. IST +5.5) are honored.
func (p UserProfile) LocalHour(now time.Time) int {
	local := now.UTC().Add(time.Duration(p.TimezoneOffset * float64(time.Hour)))
	return local.Hour()
}

// InPeak reports whether the user is inside their peak window at now.
func (p UserProfile) InPeak(now time.Time) bool {
	return p.Peak.Contains(p.LocalHour(now))
}

// PickFileType draws a file type from the user's weighted preferences.
func (p UserProfile) PickFileType(rng *rand.Rand) FileType {
	types := make([]FileType, 0, len(p.Preferences))
	for t := range p.Preferences {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var total float64
	for _, t := range types {
		total += p.Preferences[t]
	}
	x := rng.Float64() * total
	for _, t := range types {
		x -= p.Preferences[t]
		if x < 0 {
			return t
		}
	}
	return types[len(types)-1]
}

// Validate checks the profile for configuration mistakes that would break
// rate control or key namespacing.
func (p UserProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile: empty user id")
	}
	if p.Bucket == "" {
		return fmt.Errorf("profile %s: empty bucket", p.ID)
	}
	if p.ActivityMultiplier <= 0 {
		return fmt.Errorf("profile %s: activity multiplier must be positive, got %v", p.ID, p.ActivityMultiplier)
	}
	if p.Peak.Start < 0 || p.Peak.Start > 23 || p.Peak.End < 0 || p.Peak.End > 23 {
		return fmt.Errorf("profile %s: peak window hours must be in [0,23]", p.ID)
	}
	if len(p.Preferences) == 0 {
		return fmt.Errorf("profile %s: no file type preferences", p.ID)
	}
	var total float64
	for t, w := range p.Preferences {
		if w <= 0 {
			return fmt.Errorf("profile %s: non-positive weight for %s", p.ID, t)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("profile %s: preference weights sum to zero", p.ID)
	}
	return nil
}
