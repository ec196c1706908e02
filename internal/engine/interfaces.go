package engine

import (
	"context"
	"io"

	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
)

// FolderNamer looks up the name of the folder a file was uploaded into.
type FolderNamer interface {
	GetFolderName(ctx context.Context, creds model.Credentials, folderID string) (string, error)
}

// Downloader streams a file's content.
type Downloader interface {
	Download(ctx context.Context, creds model.Credentials, fileID string) (io.ReadCloser, error)
}

// Finalizer renames a file and moves it into its target folder as one
// logical step. On error the file must be left as it was.
type Finalizer interface {
	RenameAndMove(ctx context.Context, creds model.Credentials, fileID, newName, targetFolderID string) error
}

// FolderResolver picks the unique destination folder for a case.
type FolderResolver interface {
	Resolve(ctx context.Context, creds model.Credentials, id model.CaseIdentifier) (model.Folder, error)
}

// Notifier dispatches a failure notice for a file. Delivery is the
// notifier's concern; the coordinator only logs a returned error.
type Notifier interface {
	Notify(ctx context.Context, perr *model.ProcessingError, originalFileName, link string) error
}

// RunRecorder persists the outcome of a traversal.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec model.RunRecord) error
}

// DocumentOpener parses downloaded bytes into pages.
type DocumentOpener interface {
	Open(data []byte) (pdftext.Document, error)
}

// DocumentStore is the full document API the coordinator drives.
type DocumentStore interface {
	FolderNamer
	Downloader
	Finalizer
}
