package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/service"
)

const runColumns = `id, file_id, original_file_name, new_file_name, folder_name, case_number,
	disc_number, case_year, target_folder_id, user_id, stage, error_kind, error_detail,
	page_count, verdict, started_at, finished_at`

// RecordRun stores a run and its stage trail.
func (s *SQLiteStorage) RecordRun(ctx context.Context, rec model.RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(&rec); err != nil {
		return err
	}

	var verdict sql.NullString
	if rec.Verdict != nil {
		data, err := json.Marshal(rec.Verdict)
		if err != nil {
			return fmt.Errorf("failed to encode verdict: %w", err)
		}
		verdict = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileID, rec.OriginalFileName, rec.NewFileName, rec.FolderName, rec.CaseNumber,
		rec.DiscNumber, rec.Year, rec.TargetFolderID, rec.UserID, string(rec.Stage),
		string(rec.ErrorKind), rec.ErrorDetail, rec.PageCount, verdict,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("run %s: %w", rec.ID, common.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_stages (run_id, seq, stage, note, at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare stage insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range rec.Trail {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, string(e.Stage), e.Note, e.At.UTC()); err != nil {
			return fmt.Errorf("failed to insert stage %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun returns one run with its trail.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	trail, err := s.trail(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Trail = trail
	return rec, nil
}

// ListRuns returns runs matching filter, newest first. Trails are not loaded.
func (s *SQLiteStorage) ListRuns(ctx context.Context, filter service.RunFilter) ([]model.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if filter.Since != nil {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	if filter.Kind != "" {
		query += ` AND error_kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.FailedOnly {
		query += ` AND stage = ?`
		args = append(args, string(model.StageFailed))
	}
	if filter.FileID != "" {
		query += ` AND file_id = ?`
		args = append(args, filter.FileID)
	}
	query += ` ORDER BY started_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// CountByOutcome returns how many runs ended in each outcome since the given
// time. Finalized runs are counted under "Finalized", failures under their kind.
func (s *SQLiteStorage) CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN stage = ? THEN error_kind ELSE stage END AS outcome, COUNT(*)
		FROM runs
		WHERE started_at >= ?
		GROUP BY outcome`, string(model.StageFailed), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStorage) trail(ctx context.Context, runID string) ([]model.StageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, note, at FROM run_stages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trail []model.StageEvent
	for rows.Next() {
		var e model.StageEvent
		var stage string
		var note sql.NullString
		if err := rows.Scan(&stage, &note, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		e.Stage = model.Stage(stage)
		e.Note = note.String
		trail = append(trail, e)
	}
	return trail, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.RunRecord, error) {
	var rec model.RunRecord
	var newName, folder, caseNum, disc, target, user, kind, detail, verdict sql.NullString
	var year sql.NullInt64
	var stage string
	err := row.Scan(&rec.ID, &rec.FileID, &rec.OriginalFileName, &newName, &folder, &caseNum,
		&disc, &year, &target, &user, &stage, &kind, &detail,
		&rec.PageCount, &verdict, &rec.StartedAt, &rec.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	rec.NewFileName = newName.String
	rec.FolderName = folder.String
	rec.CaseNumber = caseNum.String
	rec.DiscNumber = disc.String
	rec.Year = int(year.Int64)
	rec.TargetFolderID = target.String
	rec.UserID = user.String
	rec.Stage = model.Stage(stage)
	rec.ErrorKind = model.ErrorKind(kind.String)
	rec.ErrorDetail = detail.String

	if verdict.Valid {
		var v model.SequenceVerdict
		if err := json.Unmarshal([]byte(verdict.String), &v); err != nil {
			return nil, fmt.Errorf("failed to decode verdict for run %s: %w", rec.ID, err)
		}
		rec.Verdict = &v
	}
	return &rec, nil
}
