// Package recovery reconstructs object locations for documents whose
// cross-reference information is missing or broken. It scans linearly for
// "N G obj" markers and reports every candidate, so a damaged document still
// yields as many objects as can be found.
package recovery

import "regexp"

// Candidate is one "N G obj" marker found in the byte stream. Offset points
// at the object number so the loader can re-parse the full header.
type Candidate struct {
	Num    int
	Gen    int
	Offset int64
}

var objMarker = regexp.MustCompile(`(\d{1,10})[ \t\r\n]+(\d{1,5})[ \t\r\n]+obj[^a-zA-Z0-9]`)

// Scan walks the whole buffer and returns candidates in byte order. When the
// same object number appears more than once (incremental updates append
// replacements), the caller should keep the last occurrence.
func Scan(data []byte) []Candidate {
	matches := objMarker.FindAllSubmatchIndex(data, -1)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		start := m[0]
		// The digits must begin a token; a preceding digit means the match
		// landed in the middle of a longer number inside a stream payload.
		if start > 0 && data[start-1] >= '0' && data[start-1] <= '9' {
			continue
		}
		num := parseDigits(data[m[2]:m[3]])
		gen := parseDigits(data[m[4]:m[5]])
		if num < 0 || gen < 0 {
			continue
		}
		out = append(out, Candidate{Num: num, Gen: gen, Offset: int64(start)})
	}
	return out
}

func parseDigits(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return -1
		}
	}
	return n
}
