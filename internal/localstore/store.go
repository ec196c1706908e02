// Package localstore serves the document store contract from a directory
// tree, so uploads can be processed without the Box API.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/spf13/afero"
)

// RootID names the top of the tree, matching the Box root folder ID.
const RootID = "0"

// ErrOutsideRoot is returned for IDs that escape the tree.
var ErrOutsideRoot = errors.New("path outside store root")

// Store maps folder and file IDs to slash-separated paths under its root.
type Store struct {
	fs afero.Fs
}

// New creates a store over fs.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOS creates a store rooted at a directory on disk.
func NewOS(root string) *Store {
	return New(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// resolve turns an ID into an absolute path inside the store.
func resolve(id string) (string, error) {
	if id == "" || id == RootID {
		return "/", nil
	}
	clean := path.Clean("/" + strings.TrimPrefix(id, "/"))
	for _, part := range strings.Split(id, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
		}
	}
	return clean, nil
}

// ID returns the store ID of an absolute path.
func ID(p string) string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return RootID
	}
	return p
}

// GetFolderName returns the last element of the folder's path.
func (s *Store) GetFolderName(_ context.Context, _ model.Credentials, folderID string) (string, error) {
	p, err := s.dir(folderID)
	if err != nil {
		return "", err
	}
	if p == "/" {
		return "", fmt.Errorf("folder %s has no name: %w", folderID, common.ErrNotFound)
	}
	return path.Base(p), nil
}

// ListFolders returns the immediate subdirectories of parentID.
func (s *Store) ListFolders(_ context.Context, _ model.Credentials, parentID string) ([]model.Folder, error) {
	p, err := s.dir(parentID)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", parentID, err)
	}

	var folders []model.Folder
	for _, info := range infos {
		if info.IsDir() {
			folders = append(folders, model.Folder{ID: ID(path.Join(p, info.Name())), Name: info.Name()})
		}
	}
	return folders, nil
}

// Download opens a file for reading.
func (s *Store) Download(_ context.Context, _ model.Credentials, fileID string) (io.ReadCloser, error) {
	p, err := resolve(fileID)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, wrapNotExist(fileID, err)
	}
	return f, nil
}

// RenameAndMove moves a file into targetFolderID under newName with a single
// rename. An existing file of that name is never overwritten.
func (s *Store) RenameAndMove(_ context.Context, _ model.Credentials, fileID, newName, targetFolderID string) error {
	if newName == "" || strings.ContainsAny(newName, `/\`) {
		return fmt.Errorf("invalid file name %q", newName)
	}
	src, err := resolve(fileID)
	if err != nil {
		return err
	}
	dir, err := s.dir(targetFolderID)
	if err != nil {
		return err
	}
	dst := path.Join(dir, newName)

	if _, err := s.fs.Stat(dst); err == nil {
		return fmt.Errorf("%s: %w", ID(dst), common.ErrAlreadyExists)
	}
	if err := s.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", fileID, ID(dst), wrapNotExist(fileID, err))
	}
	return nil
}

// Event builds the upload event for a file already in the tree.
func (s *Store) Event(fileID, userID string) (model.UploadEvent, error) {
	p, err := resolve(fileID)
	if err != nil {
		return model.UploadEvent{}, err
	}
	info, err := s.fs.Stat(p)
	if err != nil {
		return model.UploadEvent{}, wrapNotExist(fileID, err)
	}
	if info.IsDir() {
		return model.UploadEvent{}, fmt.Errorf("%s is a folder", fileID)
	}
	return model.UploadEvent{
		FileID:           ID(p),
		OriginalFileName: info.Name(),
		ParentFolderID:   ID(path.Dir(p)),
		UserID:           userID,
		Size:             info.Size(),
	}, nil
}

// PDFs returns the IDs of the PDF files directly inside folderID, sorted.
func (s *Store) PDFs(folderID string) ([]string, error) {
	p, err := s.dir(folderID)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", folderID, err)
	}
	var ids []string
	for _, info := range infos {
		if !info.IsDir() && strings.EqualFold(path.Ext(info.Name()), ".pdf") {
			ids = append(ids, ID(path.Join(p, info.Name())))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) dir(id string) (string, error) {
	p, err := resolve(id)
	if err != nil {
		return "", err
	}
	info, err := s.fs.Stat(p)
	if err != nil {
		return "", wrapNotExist(id, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", id)
	}
	return p, nil
}

func wrapNotExist(id string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", id, common.ErrNotFound)
	}
	return err
}
