package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// ErrMissingFields is returned when a delivery lacks required file details.
var ErrMissingFields = errors.New("missing required fields")

type delivery struct {
	Token struct {
		Read struct {
			AccessToken string `json:"access_token"`
		} `json:"read"`
	} `json:"token"`
	Source struct {
		Parent struct {
			ID string `json:"id"`
		} `json:"parent"`
		ID   string `json:"id"`
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"source"`
	Event struct {
		CreatedBy struct {
			ID string `json:"id"`
		} `json:"created_by"`
	} `json:"event"`
}

// ParseEvent decodes a Box skill delivery into an upload event.
func ParseEvent(body []byte) (model.UploadEvent, error) {
	var d delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return model.UploadEvent{}, fmt.Errorf("failed to decode delivery: %w", err)
	}

	event := model.UploadEvent{
		AccessToken:      d.Token.Read.AccessToken,
		FileID:           d.Source.ID,
		OriginalFileName: d.Source.Name,
		ParentFolderID:   d.Source.Parent.ID,
		UserID:           d.Event.CreatedBy.ID,
		Size:             d.Source.Size,
	}

	var missing []string
	if event.AccessToken == "" {
		missing = append(missing, "token.read.access_token")
	}
	if event.FileID == "" {
		missing = append(missing, "source.id")
	}
	if event.OriginalFileName == "" {
		missing = append(missing, "source.name")
	}
	if event.ParentFolderID == "" {
		missing = append(missing, "source.parent.id")
	}
	if len(missing) > 0 {
		return model.UploadEvent{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return event, nil
}
