package textproc

import "unicode/utf8"

// ContextWindow returns up to chars bytes of text on each side of the
// [start,end) byte span, excluding the span itself. The two sides are
// joined with a single space. Boundaries snap outward to rune starts
// so the window never splits a character; a non-positive chars yields
// an empty window.
func ContextWindow(text string, start, end, chars int) string {
	if chars <= 0 || start < 0 || end < start || end > len(text) {
		return ""
	}
	lo := start - chars
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := end + chars
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:start] + " " + text[end:hi]
}
