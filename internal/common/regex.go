package common

import (
	"fmt"
	"regexp"
)

// CompileRegex compiles a configured pattern and checks it has at least
// minGroups capture groups.
func CompileRegex(pattern string, minGroups int) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	if re.NumSubexp() < minGroups {
		return nil, fmt.Errorf("%w: %q needs %d capture group(s), has %d",
			ErrInvalidPattern, pattern, minGroups, re.NumSubexp())
	}
	return re, nil
}
