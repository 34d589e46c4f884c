package rooms

import (
	"strings"
	"unicode/utf8"
)

// RoomIDLen is the length of a room code: three random bytes in hex.
const RoomIDLen = 6

// NormalizeRoomID lowercases s and reports whether it is a well-formed room code.
func NormalizeRoomID(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != RoomIDLen {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return s, true
}

// CheckMessage validates a message body against the configured limits.
func (c Config) CheckMessage(content string, image bool) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if image {
		if len(content) > c.MaxImageBytes {
			return ErrImageTooLarge
		}
		return nil
	}
	if utf8.RuneCountInString(content) > c.MaxTextChars {
		return ErrMessageTooLong
	}
	return nil
}
