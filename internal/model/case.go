package model

import "fmt"

// CaseIdentifier is parsed from an upload folder named PD<YY><caseNumber>_<discNumber>.
type CaseIdentifier struct {
	FolderName string
	CaseNumber string
	DiscNumber string
	Year       int
}

// PDNumber returns the case folder prefix, e.g. PD251234.
func (c CaseIdentifier) PDNumber() string {
	return fmt.Sprintf("PD%02d%s", c.Year%100, c.CaseNumber)
}

// Folder is a folder in the document store.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
