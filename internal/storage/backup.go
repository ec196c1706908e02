package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxAutoBackups is how many automatic backups are kept.
const maxAutoBackups = 5

// Backup errors.
var (
	ErrBackupNotFound  = errors.New("backup not found")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrBackupExists    = errors.New("backup already exists")
	ErrInMemory        = errors.New("in-memory databases cannot be backed up")
)

// Backup describes one saved copy of the audit database.
type Backup struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	FileSize      int64     `json:"file_size"`
	Runs          int       `json:"runs"`
	SchemaVersion int       `json:"schema_version"`
	IsAuto        bool      `json:"is_auto"`
}

// BackupManager saves and restores copies of the audit database in a
// "backups" directory next to it.
type BackupManager struct {
	db     *sql.DB
	dbPath string
	dir    string
}

// Backups returns a backup manager for the store's database file.
func (s *SQLiteStorage) Backups() (*BackupManager, error) {
	if s.dbPath == ":memory:" {
		return nil, ErrInMemory
	}
	dbPath, err := filepath.Abs(s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	return &BackupManager{db: s.db, dbPath: dbPath, dir: dir}, nil
}

// Create writes a consistent copy of the database tagged tag. An empty tag
// is generated from the current time.
func (m *BackupManager) Create(ctx context.Context, tag, description string) (*Backup, error) {
	return m.create(ctx, tag, description, false)
}

// AutoBackup creates a backup named after the operation about to run and
// prunes older automatic backups.
func (m *BackupManager) AutoBackup(ctx context.Context, operation string) (*Backup, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, time.Now().Format("2006-01-02-150405"))
	b, err := m.create(ctx, tag, "Automatic backup before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic backup: %w", err)
	}
	if err := m.pruneAuto(); err != nil {
		slog.Warn("Failed to prune automatic backups", "error", err)
	}
	return b, nil
}

func (m *BackupManager) create(ctx context.Context, tag, description string, auto bool) (*Backup, error) {
	if tag == "" {
		tag = "backup-" + time.Now().Format("2006-01-02-150405")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	dest := m.dataPath(tag)
	if _, err := os.Stat(dest); err == nil {
		return nil, ErrBackupExists
	}

	var version, runs int
	if err := m.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&runs); err != nil {
		// An unmigrated database has no runs table.
		runs = 0
	}

	if err := m.vacuumInto(ctx, dest); err != nil {
		return nil, fmt.Errorf("failed to back up database: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	b := Backup{
		ID:            tag,
		CreatedAt:     time.Now(),
		Description:   description,
		FileSize:      info.Size(),
		Runs:          runs,
		SchemaVersion: version,
		IsAuto:        auto,
	}
	if err := writeFileAtomic(m.metaPath(tag), b); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			slog.Error("Failed to remove backup after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save backup metadata: %w", err)
	}
	return &b, nil
}

// List returns every backup, newest first. Unreadable metadata is skipped.
func (m *BackupManager) List() ([]Backup, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	backups := make([]Backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		b, err := loadBackup(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable backup metadata", "file", entry.Name(), "error", err)
			continue
		}
		backups = append(backups, *b)
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore replaces the database file with backup id. The store the manager
// came from must be closed first.
func (m *BackupManager) Restore(id string) error {
	if err := validateTag(id); err != nil {
		return err
	}
	src := m.dataPath(id)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}
	if err := checkIntegrity(src); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCorrupted, err)
	}

	saved := m.dbPath + ".restore-backup"
	if err := copyFile(m.dbPath, saved); err != nil {
		return fmt.Errorf("failed to save current database: %w", err)
	}
	if err := copyFile(src, m.dbPath); err != nil {
		if undoErr := copyFile(saved, m.dbPath); undoErr != nil {
			slog.Error("Failed to put back database after restore failure", "error", undoErr)
		}
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	// Stale WAL files from the replaced database would be replayed on open.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove stale journal file", "file", m.dbPath+suffix, "error", err)
		}
	}
	if err := os.Remove(saved); err != nil {
		slog.Warn("Failed to remove pre-restore copy", "file", saved, "error", err)
	}
	return nil
}

// Delete removes backup id.
func (m *BackupManager) Delete(id string) error {
	if err := validateTag(id); err != nil {
		return err
	}
	if err := os.Remove(m.dataPath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(m.metaPath(id)); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove backup metadata", "id", id, "error", err)
	}
	return nil
}

func (m *BackupManager) pruneAuto() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	kept := 0
	for _, b := range backups {
		if !b.IsAuto {
			continue
		}
		kept++
		if kept > maxAutoBackups {
			if err := m.Delete(b.ID); err != nil {
				slog.Debug("Failed to delete old automatic backup", "id", b.ID, "error", err)
			}
		}
	}
	return nil
}

func (m *BackupManager) vacuumInto(ctx context.Context, dest string) error {
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if !filepath.IsAbs(dest) || strings.ContainsAny(dest, `'";`) {
		return fmt.Errorf("invalid destination path %q", dest)
	}
	// #nosec G201 - dest is an absolute path checked for quoting characters above
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return err
	}
	return nil
}

func (m *BackupManager) dataPath(id string) string {
	return filepath.Join(m.dir, id+".db")
}

func (m *BackupManager) metaPath(id string) string {
	return filepath.Join(m.dir, id+".meta.json")
}

func validateTag(tag string) error {
	if strings.ContainsAny(tag, `/\`) || strings.Contains(tag, "..") {
		return fmt.Errorf("invalid backup name %q: cannot contain path separators", tag)
	}
	return nil
}

func loadBackup(path string) (*Backup, error) {
	// #nosec G304 - path is built from the backups directory listing
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - src is the database or one of its backups
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
