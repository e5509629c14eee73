package ics

import "strings"

// Profile selects client-specific encoding quirks.
type Profile int

const (
	ProfileDefault Profile = iota
	ProfileIOS
)

func (p Profile) String() string {
	if p == ProfileIOS {
		return "ios"
	}
	return "default"
}

// ParseProfile maps a client hint ("ios", "default") to a Profile.
func ParseProfile(s string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios", "iphone", "ipad":
		return ProfileIOS, true
	case "default", "android", "web":
		return ProfileDefault, true
	}
	return ProfileDefault, false
}

var iosMarkers = []string{"iPhone", "iPad", "iPod", "iOS"}

// DetectProfile honors an explicit hint first, then falls back to the
// User-Agent.
func DetectProfile(userAgent, hint string) Profile {
	if p, ok := ParseProfile(hint); ok {
		return p
	}
	for _, m := range iosMarkers {
		if strings.Contains(userAgent, m) {
			return ProfileIOS
		}
	}
	return ProfileDefault
}
