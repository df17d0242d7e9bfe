package parser

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// contentStreamText decodes the text-showing operators of a page content
// stream: Tj, TJ, ' and ". Positioning operators (Td, TD, T*, Tm, ET) are
// turned into spaces or newlines. Inline images are skipped.
func contentStreamText(data []byte) string {
	sc := &csScanner{data: data}
	var out strings.Builder
	var (
		strs []string
		nums []float64
	)

	newline := func() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokString:
			strs = append(strs, tok.text)
			continue
		case tokNumber:
			nums = append(nums, tok.num)
			continue
		case tokOther:
			continue
		}

		switch tok.text {
		case "Tj", "TJ":
			if len(strs) > 0 {
				out.WriteString(strs[len(strs)-1])
			}
		case "'", "\"":
			newline()
			if len(strs) > 0 {
				out.WriteString(strs[len(strs)-1])
			}
		case "Td", "TD":
			if len(nums) >= 2 && nums[len(nums)-1] != 0 {
				newline()
			} else if out.Len() > 0 {
				out.WriteByte(' ')
			}
		case "T*", "ET":
			newline()
		case "Tm":
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
		case "ID":
			sc.skipInlineImage()
		}
		strs = strs[:0]
		nums = nums[:0]
	}

	return tidyLines(out.String())
}

type tokKind int

const (
	tokOperator tokKind = iota
	tokString
	tokNumber
	tokOther // names, dictionary and array delimiters
)

type csToken struct {
	kind tokKind
	text string
	num  float64
}

// csScanner is a minimal PDF content stream tokenizer.
type csScanner struct {
	data []byte
	pos  int
}

func (s *csScanner) next() (csToken, bool) {
	s.skipSpace()
	if s.pos >= len(s.data) {
		return csToken{}, false
	}

	c := s.data[s.pos]
	switch {
	case c == '(':
		return csToken{kind: tokString, text: s.literal()}, true
	case c == '<' && s.peek(1) == '<':
		s.pos += 2
		return csToken{kind: tokOther}, true
	case c == '>' && s.peek(1) == '>':
		s.pos += 2
		return csToken{kind: tokOther}, true
	case c == '<':
		return csToken{kind: tokString, text: s.hex()}, true
	case c == '[':
		return csToken{kind: tokString, text: s.array()}, true
	case c == ']' || c == '{' || c == '}' || c == '>':
		s.pos++
		return csToken{kind: tokOther}, true
	case c == '/':
		s.pos++
		s.word()
		return csToken{kind: tokOther}, true
	}

	w := s.word()
	if w == "" {
		// Unknown delimiter; step over it.
		s.pos++
		return csToken{kind: tokOther}, true
	}
	if n, err := strconv.ParseFloat(w, 64); err == nil {
		return csToken{kind: tokNumber, num: n}, true
	}
	return csToken{kind: tokOperator, text: w}, true
}

func (s *csScanner) peek(off int) byte {
	if s.pos+off < len(s.data) {
		return s.data[s.pos+off]
	}
	return 0
}

func (s *csScanner) skipSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		if !isPDFSpace(c) {
			return
		}
		s.pos++
	}
}

func (s *csScanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isPDFSpace(s.data[s.pos]) && !isPDFDelim(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a parenthesised string, honouring nesting and escapes.
func (s *csScanner) literal() string {
	s.pos++ // (
	var raw []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				continue
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b':
				raw = append(raw, '\b')
			case 'f':
				raw = append(raw, '\f')
			case '\r':
				if s.peek(0) == '\n' {
					s.pos++
				}
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val*8 + int(d-'0')
						s.pos++
					}
					raw = append(raw, byte(val))
				} else {
					raw = append(raw, e)
				}
			}
		case '(':
			depth++
			raw = append(raw, c)
		case ')':
			depth--
			if depth == 0 {
				return decodePDFBytes(raw)
			}
			raw = append(raw, c)
		default:
			raw = append(raw, c)
		}
	}
	return decodePDFBytes(raw)
}

// hex reads a <...> hex string.
func (s *csScanner) hex() string {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, len(digits)/2)
	for i := range raw {
		v, _ := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		raw[i] = byte(v)
	}
	return decodePDFBytes(raw)
}

// array reads a TJ array, joining its strings. Large negative kerning
// offsets are word gaps and become spaces.
func (s *csScanner) array() string {
	s.pos++ // [
	var b strings.Builder
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return b.String()
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return b.String()
		}
		tok, ok := s.next()
		if !ok {
			return b.String()
		}
		switch tok.kind {
		case tokString:
			b.WriteString(tok.text)
		case tokNumber:
			if tok.num < -200 {
				b.WriteByte(' ')
			}
		}
	}
}

// skipInlineImage advances past the binary data of a BI ... ID ... EI block.
func (s *csScanner) skipInlineImage() {
	idx := bytes.Index(s.data[s.pos:], []byte("EI"))
	for idx >= 0 {
		end := s.pos + idx
		before := end == 0 || isPDFSpace(s.data[end-1])
		after := end+2 >= len(s.data) || isPDFSpace(s.data[end+2])
		if before && after {
			s.pos = end + 2
			return
		}
		s.pos = end + 2
		idx = bytes.Index(s.data[s.pos:], []byte("EI"))
	}
	s.pos = len(s.data)
}

// decodePDFBytes interprets string bytes as UTF-16BE when they carry a BOM,
// otherwise as WinAnsiEncoding (Windows-1252), the encoding simple fonts
// declare almost everywhere. 0x80-0x9F then map to quotes, dashes and the
// euro sign instead of C1 controls.
func decodePDFBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = charmap.Windows1252.DecodeByte(b)
	}
	return string(runes)
}

// tidyLines collapses runs of blanks inside lines and drops empty lines.
func tidyLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
