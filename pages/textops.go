package pages

// CountTextOps statically counts text-showing operators (Tj, TJ, ', ")
// in a content stream. The tokenizer understands literal strings with
// escapes, hex strings, comments and delimiters just enough to avoid
// counting operator-shaped bytes inside string data. Counts are computed
// once at parse time and are independent of rendering.
func CountTextOps(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	count := 0
	var token []byte
	flush := func() {
		switch string(token) {
		case "Tj", "TJ", "'", `"`:
			count++
		}
		token = token[:0]
	}

	inString := false
	inHex := false
	escape := false
	for i := 0; i < len(data); {
		c := data[i]

		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == ')':
				inString = false
			}
			i++
			continue
		}
		if inHex {
			if c == '>' {
				inHex = false
			}
			i++
			continue
		}

		switch c {
		case '(':
			flush()
			inString = true
			i++
		case '<':
			flush()
			if i+1 < len(data) && data[i+1] == '<' {
				i += 2
			} else {
				inHex = true
				i++
			}
		case '>':
			flush()
			if i+1 < len(data) && data[i+1] == '>' {
				i += 2
			} else {
				i++
			}
		case '%':
			flush()
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case '\n', '\r', '\t', '\f', ' ':
			flush()
			i++
		case '[', ']', '{', '}':
			flush()
			i++
		case '\'', '"':
			flush()
			token = append(token, c)
			flush()
			i++
		default:
			token = append(token, c)
			i++
		}
	}
	flush()
	return count
}
