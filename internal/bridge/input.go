package bridge

import "strings"

// inputChunkSize bounds a single "input text" invocation; long
// arguments get silently truncated by some devices.
const inputChunkSize = 80

// adbSpecials are characters the device shell interprets unless
// escaped.
const adbSpecials = "\\\"'`()[]{}<>|;&*~$"

// escapeInputText rewrites text for "adb shell input text". Spaces
// and tabs become %s, shell metacharacters get a backslash.
func escapeInputText(text string) string {
	var b strings.Builder
	for _, ch := range text {
		switch {
		case ch == ' ' || ch == '\t':
			b.WriteString("%s")
		case strings.ContainsRune(adbSpecials, ch):
			b.WriteByte('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// chunkText splits text into chunks of at most size characters.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	return append(chunks, string(runes))
}
