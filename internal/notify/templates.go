package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// reasons gives the uploader-facing explanation for each failure kind.
var reasons = map[model.ErrorKind]string{
	model.KindInvalidFolderName:       "The upload folder is not named like PD<YY><case number>_<disc number>, for example PD251234_02.",
	model.KindFileTooLarge:            "The file is larger than the maximum size that can be processed.",
	model.KindMissingStamps:           "One or more pages have no readable Bates stamp.",
	model.KindInconsecutiveStamps:     "The Bates stamps are not consecutive.",
	model.KindCaseFolderNotFound:      "No case folder was found for this case number.",
	model.KindDuplicateCaseFolder:     "More than one folder matches this case, so the file was not moved.",
	model.KindDiscoveryFolderNotFound: "The case folder has no Discovery folder.",
	model.KindLookupError:             "The upload folder could not be looked up.",
	model.KindInvocationError:         "The file could not be processed because of a system error.",
}

// detailKeys are the context entries shown to the uploader, in order.
var detailKeys = []string{"folder_name", "missing_pages", "case", "scope", "new_name", "size", "limit"}

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type view struct {
	FileName string
	Reason   string
	Detail   string
	Link     string
	Details  []detail
}

type detail struct {
	Key   string
	Value string
}

var textTmpl = texttemplate.Must(texttemplate.New("text").Parse(`DO NOT REPLY:

The file '{{.FileName}}' failed to process due to the following reason:
{{.Reason}}
{{- if .Detail}}
{{.Detail}}
{{- end}}
{{range .Details}}
{{.Key}}: {{.Value}}
{{- end}}

You can access the file here: {{.Link}}

Please review the file/folder and try again.
`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
  <body>
    <p>DO NOT REPLY:</p>
    <p>The file <strong>{{.FileName}}</strong> failed to process due to the following reason:</p>
    <p><strong>{{.Reason}}</strong></p>
    {{- if .Detail}}
    <p>{{.Detail}}</p>
    {{- end}}
    {{- if .Details}}
    <ul>
      {{- range .Details}}
      <li>{{.Key}}: {{.Value}}</li>
      {{- end}}
    </ul>
    {{- end}}
    <p>You can access the file <a href="{{.Link}}">here</a>.</p>
    <p>Please review the file/folder and try again.</p>
  </body>
</html>
`))

// Reason returns the explanation for kind.
func Reason(kind model.ErrorKind) string {
	if r, ok := reasons[kind]; ok {
		return r
	}
	return reasons[model.KindInvocationError]
}

// Render builds the subject and bodies for a failure. The recipient is left
// for the caller.
func Render(perr *model.ProcessingError, fileName, link string) (Message, error) {
	if fileName == "" {
		fileName = "Unknown File"
	}
	v := view{
		FileName: fileName,
		Reason:   Reason(perr.Kind),
		Detail:   perr.Detail,
		Link:     link,
	}
	for _, key := range detailKeys {
		if value := perr.Context[key]; value != "" {
			v.Details = append(v.Details, detail{Key: label(key), Value: value})
		}
	}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, v); err != nil {
		return Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Message{}, fmt.Errorf("failed to render html body: %w", err)
	}

	return Message{
		Subject: "File Processing Failed: " + fileName,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

var labels = map[string]string{
	"folder_name":   "Upload folder",
	"missing_pages": "Pages without a stamp",
	"case":          "Case",
	"scope":         "Folder level",
	"new_name":      "Intended name",
	"size":          "File size (bytes)",
	"limit":         "Size limit (bytes)",
}

func label(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

// Kinds lists every kind with a template, sorted.
func Kinds() []model.ErrorKind {
	kinds := make([]model.ErrorKind, 0, len(reasons))
	for k := range reasons {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
