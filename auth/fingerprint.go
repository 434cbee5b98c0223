// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import "strings"

// Fingerprint is a coarse device classification parsed from a user-agent
// string. It is audit metadata for login events, not an identity.
type Fingerprint struct {
	Browser     string
	OS          string
	DeviceClass string
}

// ParseUserAgent classifies a user-agent string into browser, OS, and
// device class. Unrecognized agents come back as "unknown" in each field;
// matching is substring-based and deliberately coarse.
func ParseUserAgent(ua string) Fingerprint {
	fp := Fingerprint{Browser: "unknown", OS: "unknown", DeviceClass: "desktop"}
	if ua == "" {
		fp.DeviceClass = "unknown"
		return fp
	}

	lower := strings.ToLower(ua)

	// Browser: order matters, Chrome's UA contains "safari" and Edge's
	// contains "chrome".
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		fp.Browser = "edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		fp.Browser = "opera"
	case strings.Contains(lower, "firefox"):
		fp.Browser = "firefox"
	case strings.Contains(lower, "chrome"), strings.Contains(lower, "crios"):
		fp.Browser = "chrome"
	case strings.Contains(lower, "safari"):
		fp.Browser = "safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		fp.OS = "windows"
	case strings.Contains(lower, "android"):
		fp.OS = "android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		fp.OS = "ios"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		fp.OS = "macos"
	case strings.Contains(lower, "linux"):
		fp.OS = "linux"
	}

	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		fp.DeviceClass = "tablet"
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"), strings.Contains(lower, "android"):
		fp.DeviceClass = "mobile"
	}

	return fp
}
