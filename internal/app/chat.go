package app

import (
	"strings"
	"unicode/utf8"
)

var chatReplacer = strings.NewReplacer("<", "", ">", "")

// SanitizeChat trims the message, strips angle brackets and cuts it to
// maxRunes runes. It returns ErrEmptyMessage when nothing is left.
func SanitizeChat(msg string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = ChatMaxLength
	}
	msg = strings.TrimSpace(chatReplacer.Replace(msg))
	if !utf8.ValidString(msg) {
		msg = strings.ToValidUTF8(msg, "")
	}
	if utf8.RuneCountInString(msg) > maxRunes {
		msg = strings.TrimSpace(string([]rune(msg)[:maxRunes]))
	}
	if msg == "" {
		return "", ErrEmptyMessage
	}
	return msg, nil
}
