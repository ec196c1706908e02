package model

// UploadEvent is delivered by the intake for every uploaded file.
type UploadEvent struct {
	AccessToken      string
	FileID           string
	OriginalFileName string
	ParentFolderID   string
	UserID           string
	Size             int64 // 0 when the intake did not report a size
}

// Credentials returns the credentials collaborators act with for this event.
func (e UploadEvent) Credentials() Credentials {
	return Credentials{
		AccessToken: e.AccessToken,
		UserID:      e.UserID,
	}
}

// MissingFields lists required fields that are empty.
func (e UploadEvent) MissingFields() []string {
	var missing []string
	if e.FileID == "" {
		missing = append(missing, "file_id")
	}
	if e.OriginalFileName == "" {
		missing = append(missing, "original_file_name")
	}
	if e.ParentFolderID == "" {
		missing = append(missing, "parent_folder_id")
	}
	if e.UserID == "" {
		missing = append(missing, "user_id")
	}
	return missing
}

// Credentials carry the caller identity for document API calls.
// An empty AccessToken means the collaborator should use its own service credentials.
type Credentials struct {
	AccessToken string
	UserID      string
}
