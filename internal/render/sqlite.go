package render

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateUp applies the embedded schema migrations to db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// renderSQLite writes summary.txt and the report to diff.db, replacing an
// existing file when overwriting is enabled.
func (r *Renderer) renderSQLite(ctx context.Context, rep *report.DiffReport, dest string) error {
	if err := writeSummaryFile(rep, dest); err != nil {
		return err
	}

	path := filepath.Join(dest, "diff.db")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := migrateUp(db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertMeta(ctx, tx, rep); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, rep); err != nil {
		return err
	}
	for _, c := range rep.Cells() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO confusion (reference_label, candidate_label, count) VALUES (?, ?, ?)`,
			c.ReferenceName, c.CandidateName, c.Count); err != nil {
			return fmt.Errorf("insert confusion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, rep *report.DiffReport) error {
	options, err := json.Marshal(rep.Options)
	if err != nil {
		return err
	}
	labels, err := json.Marshal(rep.Vocabulary)
	if err != nil {
		return err
	}
	meta := [][2]string{
		{"reference", rep.Reference},
		{"candidate", rep.Candidate},
		{"options", string(options)},
		{"labels", string(labels)},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, rep *report.DiffReport) error {
	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, status, image, reference_count, candidate_count, matches,
			label_mismatches, unmatched_reference, unmatched_candidate, low_confidence, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	pairStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pairs (item_id, reference, candidate, overlap, reference_label, candidate_label, mismatch)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pairStmt.Close()

	unmatchedStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unmatched (item_id, side, idx, label, partial) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer unmatchedStmt.Close()

	for _, id := range rep.ItemIDs() {
		it := rep.Items[id]
		if _, err := itemStmt.ExecContext(ctx, it.ID, string(it.Status), nullString(it.Image),
			it.ReferenceCount, it.CandidateCount, len(it.Matches), len(it.LabelMismatches),
			len(it.UnmatchedReference)+len(it.PartialReference),
			len(it.UnmatchedCandidate)+len(it.PartialCandidate),
			len(it.LowConfidence), nullString(it.Error)); err != nil {
			return fmt.Errorf("insert item %q: %w", it.ID, err)
		}

		for _, group := range []struct {
			pairs    []match.Pair
			mismatch bool
		}{
			{it.Matches, false},
			{it.LabelMismatches, true},
		} {
			for _, p := range group.pairs {
				if _, err := pairStmt.ExecContext(ctx, it.ID, p.Reference, p.Candidate, p.Overlap,
					rep.Vocabulary.Name(labelAt(it.Reference, p.Reference)),
					rep.Vocabulary.Name(labelAt(it.Candidate, p.Candidate)),
					group.mismatch); err != nil {
					return fmt.Errorf("insert pair: %w", err)
				}
			}
		}

		rows := []struct {
			side    string
			indices []int
			anns    []annotation.Annotation
			partial bool
		}{
			{"reference", it.UnmatchedReference, it.Reference, false},
			{"reference", it.PartialReference, it.Reference, true},
			{"candidate", it.UnmatchedCandidate, it.Candidate, false},
			{"candidate", it.PartialCandidate, it.Candidate, true},
		}
		for _, row := range rows {
			for _, i := range row.indices {
				if _, err := unmatchedStmt.ExecContext(ctx, it.ID, row.side, i,
					rep.Vocabulary.Name(labelAt(row.anns, i)), row.partial); err != nil {
					return fmt.Errorf("insert unmatched: %w", err)
				}
			}
		}
	}
	return nil
}

func labelAt(anns []annotation.Annotation, i int) annotation.LabelID {
	if i < 0 || i >= len(anns) {
		return annotation.NoLabel
	}
	return anns[i].Label
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
