package session

import "strings"

// Device is the coarse classification of a user agent stored with each
// session. It is display data for the "your devices" view, not a security
// signal, so substring sniffing is good enough.
type Device struct {
	Browser string
	OS      string
	Kind    string
	Raw     string
}

const (
	KindDesktop = "desktop"
	KindMobile  = "mobile"
	KindTablet  = "tablet"
	KindBot     = "bot"
	KindUnknown = "unknown"
)

// ParseUserAgent classifies a User-Agent header value.
func ParseUserAgent(ua string) Device {
	d := Device{Browser: "unknown", OS: "unknown", Kind: KindUnknown, Raw: ua}
	if ua == "" {
		return d
	}
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "bot"), strings.Contains(lower, "crawler"),
		strings.Contains(lower, "spider"), strings.Contains(lower, "curl"),
		strings.Contains(lower, "wget"):
		d.Kind = KindBot
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		d.Kind = KindTablet
	case strings.Contains(lower, "mobi"), strings.Contains(lower, "android"),
		strings.Contains(lower, "iphone"):
		d.Kind = KindMobile
	default:
		d.Kind = KindDesktop
	}

	// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		d.Browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		d.Browser = "Opera"
	case strings.Contains(lower, "firefox"):
		d.Browser = "Firefox"
	case strings.Contains(lower, "chrome"):
		d.Browser = "Chrome"
	case strings.Contains(lower, "safari"):
		d.Browser = "Safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		d.OS = "Windows"
	case strings.Contains(lower, "android"):
		d.OS = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"),
		strings.Contains(lower, "ios"):
		d.OS = "iOS"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		d.OS = "macOS"
	case strings.Contains(lower, "linux"):
		d.OS = "Linux"
	}

	return d
}
