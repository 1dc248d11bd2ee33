// Package mentions extracts @handles from user-authored text.
//
// Handles are runs of ASCII word characters ([A-Za-z0-9_]) directly after an
// '@'. Anything else ends the handle, so multi-word display names are reached
// through a whitespace-free nickname rather than through the text itself.
package mentions

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	mentionRe = regexp.MustCompile(`@(\w+)`)
	activeRe  = regexp.MustCompile(`@(\w*)$`)
	handleRe  = regexp.MustCompile(`^\w+$`)
)

// IsHandle reports whether s can be written after an '@' and parsed back whole.
func IsHandle(s string) bool {
	return handleRe.MatchString(s)
}

// Parse returns mention handles without the @ prefix, in order of appearance.
// Duplicates are kept; deduplication happens when recipients are collected.
func Parse(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	handles := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		handle := strings.TrimSpace(match[1])
		if handle == "" {
			continue
		}
		handles = append(handles, handle)
	}
	return handles
}

// ActiveQuery returns the partial handle being typed right before caret (a rune
// offset into text). ok is false when the caret is not inside a mention.
func ActiveQuery(text string, caret int) (query string, ok bool) {
	before, _ := splitAt(text, caret)
	match := activeRe.FindStringSubmatch(before)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Complete replaces the partial mention before caret with "@handle" followed by
// a space, unless the text after the caret already starts with whitespace. The
// returned caret sits after that separating space.
// Text without an active mention is returned unchanged.
func Complete(text string, caret int, handle string) (string, int) {
	before, after := splitAt(text, caret)
	loc := activeRe.FindStringIndex(before)
	if loc == nil {
		return text, len([]rune(before))
	}
	newBefore := before[:loc[0]] + "@" + handle
	if r, _ := utf8.DecodeRuneInString(after); after == "" || !unicode.IsSpace(r) {
		newBefore += " "
		return newBefore + after, len([]rune(newBefore))
	}
	return newBefore + after, len([]rune(newBefore)) + 1
}

func splitAt(text string, caret int) (string, string) {
	runes := []rune(text)
	if caret < 0 {
		caret = 0
	}
	if caret > len(runes) {
		caret = len(runes)
	}
	return string(runes[:caret]), string(runes[caret:])
}
