package classify

import (
	"net/url"
	"strings"
)

// EmbedHosts are the video platforms whose players are reported by the
// embed scan.
var EmbedHosts = []string{
	"youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
	"vimeo.com",
	"dailymotion.com",
	"twitch.tv",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
}

// IsEmbedHost reports whether rawURL points at one of EmbedHosts or a
// subdomain of it.
func IsEmbedHost(rawURL string) bool {
	for _, host := range EmbedHosts {
		if IsUrlHostAndHasPath(rawURL, host, false, true) {
			return true
		}
	}
	return false
}

// IsUrlHostAndHasPath reports whether rawUrl's host is expectedHost or one of
// its subdomains, optionally requiring a non-root path.
func IsUrlHostAndHasPath(rawUrl string, expectedHost string, mustHavePath bool, ignoreCase bool) bool {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return false
	}

	host := u.Hostname()
	if ignoreCase {
		host = strings.ToLower(host)
		expectedHost = strings.ToLower(expectedHost)
	}

	if host != expectedHost && !strings.HasSuffix(host, "."+expectedHost) {
		return false
	}

	if mustHavePath && (u.Path == "" || u.Path == "/") {
		return false
	}

	return true
}
