package classify

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/clip.mp4", "mp4"},
		{"https://example.com/clip.WEBM", "webm"},
		{"https://example.com/clip.mkv?x=1", "mkv"},
		{"https://example.com/movie.m4v#t=10", "m4v"},
		{"https://cdn.example.com/a/b/master.m3u8?token=x", "HLS"},
		{"https://cdn.example.com/manifest.mpd", "DASH"},
		{"https://cdn.example.com/live/manifest.mpd?sig=1.2", "DASH"},
		{"https://example.com/watch?v=abc", "mp4"},
		{"not a url at all", "mp4"},
		{"", "mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Format(tt.input)
			if got != tt.expected {
				t.Errorf("\nInput:    %s\nExpected: %s\nGot:      %s", tt.input, tt.expected, got)
			}
		})
	}
}

func TestLooksLikeVideo(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://example.com/a.mp4", true},
		{"https://example.com/playlist.m3u8", true},
		{"https://example.com/get?format=mp4?", true},
		{"https://example.com/VIDEO/123", true},
		{"https://example.com/livestream", true},
		{"https://example.com/media/1", true},
		{"https://example.com/image.png", false},
		{"https://example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := LooksLikeVideo(tt.input)
			if got != tt.expected {
				t.Errorf("\nInput:    %s\nExpected: %v\nGot:      %v", tt.input, tt.expected, got)
			}
		})
	}
}

func TestIsValidDownloadable(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"ftp://host/video.mp4", false},
		{"https://host/stream/video.mp4", true},
		{"https://host/clip.webm", true},
		{"http://host/clip.mov", true},
		{"https://host/page.html", false},
		{"blob:https://host/1234-video", false},
		{"video.mp4", false},
		{"https://%zz/video.mp4", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := IsValidDownloadable(tt.input)
			if got != tt.expected {
				t.Errorf("\nInput:    %s\nExpected: %v\nGot:      %v", tt.input, tt.expected, got)
			}
		})
	}
}

func TestIsEmbedHost(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://www.youtube.com/embed/abc", true},
		{"https://youtu.be/abc", true},
		{"https://www.youtube-nocookie.com/embed/abc", true},
		{"https://player.vimeo.com/video/1", true},
		{"https://WWW.DAILYMOTION.COM/embed/video/x", true},
		{"https://player.twitch.tv/?channel=x", true},
		{"https://www.tiktok.com/embed/v2/1", true},
		{"https://notyoutube.com/embed/abc", false},
		{"https://example.com/?u=youtube.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := IsEmbedHost(tt.input)
			if got != tt.expected {
				t.Errorf("\nInput:    %s\nExpected: %v\nGot:      %v", tt.input, tt.expected, got)
			}
		})
	}
}
