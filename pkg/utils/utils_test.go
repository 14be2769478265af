package utils

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0:00:00"},
		{59, "0:00:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-5, "0:00:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := FormatHours(5400); got != "1.50h" {
		t.Errorf("FormatHours = %q, want %q", got, "1.50h")
	}
	if got := FormatDailyAverage(7 * 3600); got != "1.00h/day" {
		t.Errorf("FormatDailyAverage = %q, want %q", got, "1.00h/day")
	}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		in     string
		id     string
		isUser bool
	}{
		{"<@123>", "123", true},
		{"<@!456>", "456", true},
		{"<@&789>", "&789", false},
		{"plain", "plain", false},
		{"<@>", "", false},
	}
	for _, tt := range tests {
		if got := ExtractUserIDFromMention(tt.in); got != tt.id {
			t.Errorf("ExtractUserIDFromMention(%q) = %q, want %q", tt.in, got, tt.id)
		}
		if got := IsUserMention(tt.in); got != tt.isUser {
			t.Errorf("IsUserMention(%q) = %v, want %v", tt.in, got, tt.isUser)
		}
	}
	if got := FormatUserMention("1"); got != "<@1>" {
		t.Errorf("FormatUserMention = %q", got)
	}
	if got := FormatChannelMention("2"); got != "<#2>" {
		t.Errorf("FormatChannelMention = %q", got)
	}
}

func TestFormatLeaderboardEntry(t *testing.T) {
	if got := FormatLeaderboardEntry(1, "alice", "2.00h"); got != "🥇 alice - 2.00h" {
		t.Errorf("rank 1 = %q", got)
	}
	if got := FormatLeaderboardEntry(4, "bob", "1.00h"); got != "4. bob - 1.00h" {
		t.Errorf("rank 4 = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString short = %q", got)
	}
	if got := TruncateString("abcdefghij", 6); got != "abc..." {
		t.Errorf("TruncateString = %q, want %q", got, "abc...")
	}
	if got := TruncateString("ääääää", 5); got != "ää..." {
		t.Errorf("TruncateString runes = %q, want %q", got, "ää...")
	}
}
