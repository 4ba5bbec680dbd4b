// Package crawler classifies user agents so the renderer can decide
// between progressive streaming (humans) and fully-buffered responses
// (bots that do not execute the swap scripts).
package crawler

import (
	"strings"

	"github.com/mileusna/useragent"
)

// extraBots covers agents the useragent library does not flag but that we
// still want served a complete document.
var extraBots = []string{
	"lighthouse",
	"chrome-lighthouse",
	"headlesschrome",
	"prerender",
	"bingpreview",
}

// IsBot reports whether the user agent string belongs to an automated
// crawler. An empty user agent is treated as a bot: real browsers always
// send one, and buffering is the safer default for unknown clients.
func IsBot(uaString string) bool {
	if strings.TrimSpace(uaString) == "" {
		return true
	}

	ua := useragent.Parse(uaString)
	if ua.Bot {
		return true
	}

	low := strings.ToLower(uaString)
	for _, marker := range extraBots {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}
