// Package scanner tokenizes raw PDF syntax: names, numbers, strings,
// dictionary and array delimiters, indirect references, keywords, and stream
// payloads. It is the primitive layer everything above the object model
// builds on; it does not interpret object semantics.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

type TokenType int

const (
	TokenDictOpen   TokenType = iota // '<<'
	TokenDictClose                   // '>>'
	TokenArrayOpen                   // '['
	TokenArrayClose                  // ']'
	TokenName                        // /Name
	TokenString                      // literal or hex string
	TokenNumber                      // integer or real
	TokenBoolean                     // true / false
	TokenNull                        // null
	TokenRef                         // '5 0 R'
	TokenStream                      // stream payload following the stream keyword
	TokenKeyword                     // obj, endobj, endstream, ...
)

type Token struct {
	Type  TokenType
	Str   string // name or keyword text
	Bytes []byte // string or stream payload
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Hex   bool // string came from <...> hex form
	Num   int  // ref object number
	Gen   int  // ref generation number
	Pos   int64
}

var ErrUnexpectedEOF = errors.New("unexpected end of input")

// Scanner walks an in-memory document. Documents arrive as request bodies
// under the upload cap, so the whole buffer is held at once.
type Scanner struct {
	data          []byte
	pos           int64
	nextStreamLen int64
}

func New(data []byte) *Scanner {
	return &Scanner{data: data, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) Len() int64 { return int64(len(s.data)) }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek offset %d out of range", offset)
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength tells the scanner the declared /Length of the next
// stream payload so it can be sliced directly instead of searching for the
// endstream marker. Pass a negative value to clear the hint.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *Scanner) Next() (Token, error) {
	if err := s.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
}

func (s *Scanner) skipWhitespaceAndComments() error {
	for {
		if s.pos >= int64(len(s.data)) {
			return ErrUnexpectedEOF
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return nil
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) || isWhitespace(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			a, okA := fromHex(s.data[s.pos+1])
			b, okB := fromHex(s.data[s.pos+2])
			if okA && okB {
				out.WriteByte(a<<4 | b)
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '\\' {
			s.pos++
			if s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				s.pos++
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		}
		if c == '(' {
			depth++
			buf.WriteByte(c)
			s.pos++
			continue
		}
		if c == ')' {
			depth--
			s.pos++
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
			continue
		}
		buf.WriteByte(c)
		s.pos++
	}
	return Token{}, fmt.Errorf("unterminated literal string at %d: %w", start, ErrUnexpectedEOF)
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	for {
		if s.pos >= int64(len(s.data)) {
			return Token{}, fmt.Errorf("unterminated hex string at %d: %w", start, ErrUnexpectedEOF)
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		nibbles = append(nibbles, c)
		s.pos++
	}
	// Odd nibble count is padded with zero per PDF 7.3.4.3.
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, '0')
	}
	out := make([]byte, 0, len(nibbles)/2)
	for i := 0; i < len(nibbles); i += 2 {
		a, _ := fromHex(nibbles[i])
		b, _ := fromHex(nibbles[i+1])
		out = append(out, a<<4|b)
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) || isWhitespace(c) {
			break
		}
		buf.WriteByte(c)
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberText()
	if first == "" {
		s.pos++
		return Token{}, fmt.Errorf("invalid number at %d", start)
	}
	// "N G R" lookahead without consuming on failure.
	save := s.pos
	if s.skipWhitespaceAndComments() == nil {
		second := s.scanNumberText()
		if second != "" && s.skipWhitespaceAndComments() == nil &&
			s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
			(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1]) || isWhitespace(s.data[s.pos+1])) {
			num, errN := strconv.Atoi(first)
			gen, errG := strconv.Atoi(second)
			if errN == nil && errG == nil {
				s.pos++
				return Token{Type: TokenRef, Num: num, Gen: gen, Pos: start}, nil
			}
		}
	}
	s.pos = save
	if i, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return Token{}, fmt.Errorf("invalid number %q at %d", first, start)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *Scanner) scanNumberText() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' {
			s.pos++
			continue
		}
		if c >= '0' && c <= '9' {
			seenDigit = true
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

// scanStream consumes the payload between the stream keyword and endstream.
// With a length hint the payload is sliced directly; otherwise the marker is
// searched for, requiring a whitespace boundary so binary payloads that
// happen to contain the letters do not end the stream early.
func (s *Scanner) scanStream(start int64) (Token, error) {
	// PDF 7.3.8: the stream keyword is followed by CRLF or LF before data.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	hint := s.nextStreamLen
	s.nextStreamLen = -1

	if hint >= 0 {
		end := dataStart + hint
		if end > int64(len(s.data)) {
			end = int64(len(s.data))
		}
		payload := append([]byte(nil), s.data[dataStart:end]...)
		s.pos = end
		// Skip the EOL before endstream and the marker itself when present.
		if idx := bytes.Index(s.data[s.pos:], []byte("endstream")); idx >= 0 && idx <= 4 {
			s.pos += int64(idx + len("endstream"))
		}
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}

	needle := []byte("endstream")
	search := s.data[dataStart:]
	offset := 0
	for {
		idx := bytes.Index(search[offset:], needle)
		if idx < 0 {
			return Token{}, fmt.Errorf("endstream not found after %d: %w", dataStart, ErrUnexpectedEOF)
		}
		abs := offset + idx
		prevOK := abs == 0 || isWhitespace(search[abs-1])
		next := abs + len(needle)
		nextOK := next >= len(search) || isDelimiter(search[next]) || isWhitespace(search[next])
		if prevOK && nextOK {
			end := abs
			// Trim one trailing EOL that belongs to the marker, not the data.
			if end > 0 && search[end-1] == '\n' {
				end--
			}
			if end > 0 && search[end-1] == '\r' {
				end--
			}
			payload := append([]byte(nil), search[:end]...)
			s.pos = dataStart + int64(next)
			return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
		}
		offset = abs + 1
	}
}

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isDelimiter(c) && !isWhitespace(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
