// Package caseid parses case identifiers out of upload folder names.
package caseid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// ErrInvalidFolderName is returned for folder names that are not PD<YY><case>_<disc>.
var ErrInvalidFolderName = errors.New("invalid folder name")

var folderPattern = regexp.MustCompile(`^PD(\d{2})(\d+)_(\d+)$`)

// Parse reads a folder name such as PD251234_02 into year 2025, case 1234
// and disc 02. Disc numbers shorter than two digits are zero padded.
func Parse(folderName string) (model.CaseIdentifier, error) {
	m := folderPattern.FindStringSubmatch(folderName)
	if m == nil {
		return model.CaseIdentifier{}, fmt.Errorf("%w: %q, expected PD<YY><case>_<disc>", ErrInvalidFolderName, folderName)
	}

	yy, err := strconv.Atoi(m[1])
	if err != nil {
		return model.CaseIdentifier{}, fmt.Errorf("%w: %q: %v", ErrInvalidFolderName, folderName, err)
	}

	disc := m[3]
	if len(disc) < 2 {
		disc = "0" + disc
	}

	return model.CaseIdentifier{
		FolderName: folderName,
		Year:       2000 + yy,
		CaseNumber: m[2],
		DiscNumber: disc,
	}, nil
}
