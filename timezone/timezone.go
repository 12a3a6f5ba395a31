// Package timezone resolves event timezone identifiers to locations.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

// Resolver maps a timezone identifier to a location. Implementations must be
// deterministic and free of side effects.
type Resolver func(name string) (*time.Location, error)

// Map of common Windows timezone names to IANA timezone names
var windowsToIANA = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"Atlantic Standard Time":       "America/Halifax",
	"Alaskan Standard Time":        "America/Anchorage",
	"Hawaiian Standard Time":       "Pacific/Honolulu",
	"GMT Standard Time":            "Europe/London",
	"W. Europe Standard Time":      "Europe/Berlin",
	"Central Europe Standard Time": "Europe/Budapest",
	"Romance Standard Time":        "Europe/Paris",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"Korea Standard Time":          "Asia/Seoul",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
}

// Load is the default Resolver. An empty name means UTC; Windows names are
// mapped to their IANA equivalent before loading.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") || name == "Z" {
		return time.UTC, nil
	}
	if ianaName, ok := windowsToIANA[name]; ok {
		name = ianaName
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// Fixed returns a Resolver that serves the given locations by name and fails
// for anything else. It is meant for tests and for callers that preload zones.
func Fixed(locations map[string]*time.Location) Resolver {
	return func(name string) (*time.Location, error) {
		if loc, ok := locations[name]; ok {
			return loc, nil
		}
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
}

// OrDefault returns r, or Load when r is nil.
func OrDefault(r Resolver) Resolver {
	if r == nil {
		return Load
	}
	return r
}
