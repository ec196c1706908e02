// Package bates recognizes Bates stamps, validates stamp sequences and
// composes canonical filenames from validated ranges.
package bates

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

// DefaultPattern matches two forward slashes followed by a digit run,
// tolerating spaces and tabs around and between the slashes. A line break
// anywhere in the stamp means no match.
const DefaultPattern = `(?i)/[ \t]*/[ \t]*(\d+)`

// Scanner finds the Bates stamp in a page's footer text.
type Scanner struct {
	re *regexp.Regexp
}

// NewScanner compiles pattern, whose first capture group must be the digit
// run. An empty pattern uses DefaultPattern.
func NewScanner(pattern string) (*Scanner, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := common.CompileRegex(pattern, 1)
	if err != nil {
		return nil, err
	}
	return &Scanner{re: re}, nil
}

// MustNewScanner is NewScanner for patterns known to be valid.
func MustNewScanner(pattern string) *Scanner {
	s, err := NewScanner(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

// Scan returns the digit run of the last stamp in text. It reports false when
// nothing matches or when the last match cannot be told apart from a stamp
// split by whitespace, such as "// 000 123".
func (s *Scanner) Scan(text string) (string, bool) {
	text = norm.NFKC.String(text)
	matches := s.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return "", false
	}

	last := matches[len(matches)-1]
	start, end := last[2], last[3]
	if start < 0 {
		return "", false
	}
	digits := text[start:end]
	if digits == "" || !allDigits(digits) {
		return "", false
	}

	rest := strings.TrimLeftFunc(text[end:], unicode.IsSpace)
	if rest != "" && isASCIIDigit(rest[0]) {
		return "", false
	}
	return digits, true
}

// Read scans one page's region text into a reading.
func (s *Scanner) Read(page int, text string) model.StampReading {
	digits, ok := s.Scan(text)
	if !ok {
		return model.AbsentStampReading(page, text)
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return model.AbsentStampReading(page, text)
	}
	return model.NewStampReading(page, value, digits, text)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isASCIIDigit(s[i]) {
			return false
		}
	}
	return true
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
