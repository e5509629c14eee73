package ics

import (
	"strings"
	"unicode/utf8"
)

const (
	maxLineOctets  = 75
	foldChunkBytes = 74
)

// Fold rewrites doc with CRLF endings so that no line exceeds 75 octets.
// A long line becomes a chunk of at most 74 octets followed by
// continuation lines of at most 74 octets, each led by one space. Chunks
// never split a UTF-8 sequence. The input is unfolded first, so Fold is
// idempotent.
func Fold(doc string) string {
	doc = Unfold(doc)
	doc = strings.TrimRight(doc, "\r\n")
	if doc == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(doc) + len(doc)/foldChunkBytes*3 + 2)
	for _, line := range strings.Split(doc, "\n") {
		foldLine(&b, strings.TrimSuffix(line, "\r"))
	}
	return b.String()
}

// Unfold joins continuation lines back onto their logical line.
func Unfold(doc string) string {
	r := strings.NewReplacer("\r\n ", "", "\r\n\t", "", "\n ", "", "\n\t", "")
	return r.Replace(doc)
}

func foldLine(b *strings.Builder, line string) {
	if len(line) <= maxLineOctets {
		b.WriteString(line)
		b.WriteString("\r\n")
		return
	}
	for first := true; len(line) > 0; first = false {
		n := min(foldChunkBytes, len(line))
		for n < len(line) && !utf8.RuneStart(line[n]) {
			n--
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(line[:n])
		b.WriteString("\r\n")
		line = line[n:]
	}
}
