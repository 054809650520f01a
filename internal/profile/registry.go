package profile

import "fmt"

// Registry is the read-only table of simulated users.
type Registry struct {
	profiles []UserProfile
	byID     map[string]UserProfile
}

// NewRegistry builds a registry from the given profiles, validating each.
func NewRegistry(profiles []UserProfile) (*Registry, error) {
	byID := make(map[string]UserProfile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("profile: duplicate user id %s", p.ID)
		}
		byID[p.ID] = p
	}
	out := make([]UserProfile, len(profiles))
	copy(out, profiles)
	return &Registry{profiles: out, byID: byID}, nil
}

// DefaultRegistry returns the standard ten-persona roster.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultRoster)
	if err != nil {
		// The built-in roster is a compile-time constant; a validation
		// failure here is a programming error.
		panic(err)
	}
	return r
}

// Lookup returns the profile for id.
func (r *Registry) Lookup(id string) (UserProfile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All enumerates every profile, in roster order.
func (r *Registry) All() []UserProfile {
	out := make([]UserProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Len returns the roster size, which is also the run's concurrency width.
func (r *Registry) Len() int { return len(r.profiles) }

var defaultRoster = []UserProfile{
	{
		ID:                 "alice-dev",
		Description:        "Software Developer - Heavy code and docs",
		Bucket:             "alice-dev-workspace",
		TimezoneOffset:     0,
		Peak:               PeakWindow{Start: 9, End: 17},
		ActivityMultiplier: 1.5,
		Preferences: map[FileType]float64{
			TypeCode: 0.4, TypeDocuments: 0.3, TypeImages: 0.1, TypeArchives: 0.1, TypeMedia: 0.1,
		},
	},
	{
		ID:                 "bob-marketing",
		Description:        "Marketing Manager - Media and presentations",
		Bucket:             "bob-marketing-assets",
		TimezoneOffset:     -5,
		Peak:               PeakWindow{Start: 8, End: 16},
		ActivityMultiplier: 1.2,
		Preferences: map[FileType]float64{
			TypeMedia: 0.4, TypeImages: 0.3, TypeDocuments: 0.2, TypeCode: 0.05, TypeArchives: 0.05,
		},
	},
	{
		ID:                 "carol-data",
		Description:        "Data Scientist - Large datasets and analysis",
		Bucket:             "carol-analytics",
		TimezoneOffset:     -8,
		Peak:               PeakWindow{Start: 10, End: 18},
		ActivityMultiplier: 2.0,
		Preferences: map[FileType]float64{
			TypeArchives: 0.4, TypeDocuments: 0.3, TypeCode: 0.2, TypeImages: 0.05, TypeMedia: 0.05,
		},
	},
	{
		ID:                 "david-backup",
		Description:        "IT Admin - Automated backup systems",
		Bucket:             "david-backups",
		TimezoneOffset:     0,
		Peak:               PeakWindow{Start: 2, End: 6},
		ActivityMultiplier: 3.0,
		Preferences: map[FileType]float64{
			TypeArchives: 0.6, TypeDocuments: 0.2, TypeCode: 0.1, TypeImages: 0.05, TypeMedia: 0.05,
		},
	},
	{
		ID:                 "eve-design",
		Description:        "Creative Designer - Images and media files",
		Bucket:             "eve-creative-work",
		TimezoneOffset:     1,
		Peak:               PeakWindow{Start: 9, End: 17},
		ActivityMultiplier: 1.8,
		Preferences: map[FileType]float64{
			TypeImages: 0.5, TypeMedia: 0.3, TypeDocuments: 0.1, TypeCode: 0.05, TypeArchives: 0.05,
		},
	},
	{
		ID:                 "frank-research",
		Description:        "Research Scientist - Academic papers and data",
		Bucket:             "frank-research-data",
		TimezoneOffset:     -3,
		Peak:               PeakWindow{Start: 14, End: 22},
		ActivityMultiplier: 1.3,
		Preferences: map[FileType]float64{
			TypeDocuments: 0.4, TypeArchives: 0.3, TypeCode: 0.2, TypeImages: 0.05, TypeMedia: 0.05,
		},
	},
	{
		ID:                 "grace-sales",
		Description:        "Sales Manager - Presentations and materials",
		Bucket:             "grace-sales-materials",
		TimezoneOffset:     -6,
		Peak:               PeakWindow{Start: 8, End: 16},
		ActivityMultiplier: 1.1,
		Preferences: map[FileType]float64{
			TypeDocuments: 0.4, TypeImages: 0.3, TypeMedia: 0.2, TypeCode: 0.05, TypeArchives: 0.05,
		},
	},
	{
		ID:                 "henry-ops",
		Description:        "DevOps Engineer - Infrastructure and configs",
		Bucket:             "henry-operations",
		TimezoneOffset:     0,
		Peak:               PeakWindow{Start: 0, End: 8},
		ActivityMultiplier: 2.5,
		Preferences: map[FileType]float64{
			TypeCode: 0.4, TypeArchives: 0.3, TypeDocuments: 0.2, TypeImages: 0.05, TypeMedia: 0.05,
		},
	},
	{
		ID:                 "iris-content",
		Description:        "Content Manager - Digital asset library",
		Bucket:             "iris-content-library",
		TimezoneOffset:     9,
		Peak:               PeakWindow{Start: 9, End: 17},
		ActivityMultiplier: 1.7,
		Preferences: map[FileType]float64{
			TypeMedia: 0.4, TypeImages: 0.3, TypeDocuments: 0.2, TypeArchives: 0.05, TypeCode: 0.05,
		},
	},
	{
		ID:                 "jack-mobile",
		Description:        "Mobile Developer - App assets and code",
		Bucket:             "jack-mobile-apps",
		TimezoneOffset:     5.5,
		Peak:               PeakWindow{Start: 10, End: 18},
		ActivityMultiplier: 1.6,
		Preferences: map[FileType]float64{
			TypeCode: 0.4, TypeImages: 0.3, TypeMedia: 0.2, TypeDocuments: 0.05, TypeArchives: 0.05,
		},
	},
}
