// Package device renders client User-Agent strings as short display
// summaries. Summaries ride along on audit events so forensics and admin
// views can show what kind of client acted without storing raw UA strings.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent renders a User-Agent string as a short human-readable
// summary of the form "Browser on Platform". Unknown agents still produce a
// non-empty summary.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OSInfo().Name
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown Platform"
	}

	// Fields+Join collapses any doubled spaces from empty parse results.
	return strings.Join(strings.Fields(browser+" on "+platform), " ")
}
