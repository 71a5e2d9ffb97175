package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/snapnote/store"
)

const (
	// maxEfSearch is the largest hnsw.ef_search pgvector accepts.
	maxEfSearch = 1000
	// hnsw.max_scan_tuples bounds how far an iterative scan walks the graph.
	defaultMaxScanTuples   = 20000
	maxScanTuples          = 200000
	scanTuplesPerCandidate = 20
)

const noteColumns = `id, uid, owner_id, image_url, embedding, title, summary, metadata, interpretation, interpretation_completed, interpret_attempts, last_attempt_ts, next_attempt_ts, created_ts, updated_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*store.Note, error) {
	var note store.Note
	var id int64
	var embedding *pgvector.Vector
	var metadata []byte
	var interpretation []byte
	if err := row.Scan(
		&id,
		&note.UID,
		&note.OwnerID,
		&note.ImageURL,
		&embedding,
		&note.Title,
		&note.Summary,
		&metadata,
		&interpretation,
		&note.InterpretationCompleted,
		&note.InterpretAttempts,
		&note.LastAttemptTs,
		&note.NextAttemptTs,
		&note.CreatedTs,
		&note.UpdatedTs,
	); err != nil {
		return nil, err
	}

	note.ID = strconv.FormatInt(id, 10)
	if embedding != nil {
		note.Embedding = embedding.Slice()
	}
	if len(interpretation) > 0 {
		note.Interpretation = json.RawMessage(interpretation)
	}
	note.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &note.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal metadata")
		}
	}
	return &note, nil
}

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	metadata, err := json.Marshal(create.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	stmt := `
		INSERT INTO note (uid, owner_id, image_url, metadata)
		VALUES (` + placeholders(4) + `)
		RETURNING ` + noteColumns
	note, err := scanNote(d.db.QueryRowContext(ctx, stmt, create.UID, create.OwnerID, create.ImageURL, string(metadata)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}
	return note, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		id, err := strconv.ParseInt(*find.ID, 10, 64)
		if err != nil {
			return []*store.Note{}, nil
		}
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, id)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *find.OwnerID)
	}
	if find.Completed != nil {
		where, args = append(where, "interpretation_completed = "+placeholder(len(args)+1)), append(args, *find.Completed)
	}
	if find.CreatedBefore != nil {
		where, args = append(where, "created_ts < "+placeholder(len(args)+1)), append(args, *find.CreatedBefore)
	}
	if find.AttemptsBelow != nil {
		where, args = append(where, "interpret_attempts < "+placeholder(len(args)+1)), append(args, *find.AttemptsBelow)
	}
	if find.DueBy != nil {
		where, args = append(where, "next_attempt_ts <= "+placeholder(len(args)+1)), append(args, *find.DueBy)
	}

	order := "created_ts DESC, id DESC"
	if find.OldestFirst {
		order = "created_ts ASC, id ASC"
	}
	query := `SELECT ` + noteColumns + ` FROM note WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order
	if find.Limit != nil {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	list := []*store.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		list = append(list, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CommitNoteInterpretation(ctx context.Context, commit *store.CommitNoteInterpretation) (*store.Note, error) {
	metadata, err := json.Marshal(commit.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	// One statement: either every field lands together with the completion flag or nothing does.
	stmt := `
		UPDATE note SET
			title = ` + placeholder(2) + `,
			summary = ` + placeholder(3) + `,
			interpretation = ` + placeholder(4) + `::jsonb,
			embedding = ` + placeholder(5) + `,
			metadata = COALESCE(metadata, '{}'::jsonb) || ` + placeholder(6) + `::jsonb,
			interpretation_completed = TRUE,
			updated_ts = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE uid = ` + placeholder(1) + `
		RETURNING ` + noteColumns

	note, err := scanNote(d.db.QueryRowContext(ctx, stmt,
		commit.UID,
		commit.Title,
		commit.Summary,
		string(commit.Interpretation),
		pgvector.NewVector(commit.Embedding),
		string(metadata),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to commit note interpretation")
	}
	return note, nil
}

func (d *DB) RecordNoteAttempt(ctx context.Context, record *store.RecordNoteAttempt) (*store.Note, error) {
	stmt := `
		UPDATE note SET
			interpret_attempts = interpret_attempts + 1,
			last_attempt_ts = ` + placeholder(2) + `,
			next_attempt_ts = ` + placeholder(3) + `
		WHERE uid = ` + placeholder(1) + `
		RETURNING ` + noteColumns

	note, err := scanNote(d.db.QueryRowContext(ctx, stmt, record.UID, record.AttemptTs, record.NextAttemptTs))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to record note attempt")
	}
	return note, nil
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note WHERE uid = `+placeholder(1), delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete note")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("note %s not found", delete.UID)
	}
	return nil
}

// SearchNotesByVector performs owner-scoped vector similarity search using pgvector.
//
// The HNSW scan runs with iterative scanning when the extension supports it, so the owner
// filter is applied while walking the graph rather than to a fixed ef_search window.
// If the approximate pass still comes up short of the limit, the owner's rows are ranked
// exactly; that scan is small precisely when the owner holds a small share of the table.
func (d *DB) SearchNotesByVector(ctx context.Context, search *store.NoteVectorSearch) ([]*store.NoteWithScore, error) {
	iterative, err := d.supportsIterativeScan(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	// SET does not take bind parameters; the values are clamped integers.
	efSearch := min(max(search.NumCandidates, search.Limit), maxEfSearch)
	settings := []string{fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)}
	if iterative {
		scanTuples := min(max(search.NumCandidates*scanTuplesPerCandidate, defaultMaxScanTuples), maxScanTuples)
		settings = append(settings,
			"SET LOCAL hnsw.iterative_scan = strict_order",
			fmt.Sprintf("SET LOCAL hnsw.max_scan_tuples = %d", scanTuples),
		)
	}
	for _, stmt := range settings {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrapf(err, "failed to apply %q", stmt)
		}
	}

	// The <=> operator computes cosine distance (1 - cosine_similarity).
	approximate := `
		SELECT ` + searchColumns + `, 1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM note
		WHERE owner_id = ` + placeholder(2) + `
			AND interpretation_completed
			AND embedding IS NOT NULL
		ORDER BY embedding <=> ` + placeholder(1) + `
		LIMIT ` + placeholder(3)

	vector := pgvector.NewVector(search.Vector)
	results, err := queryNotesWithScore(ctx, tx, approximate, vector, search.OwnerID, search.Limit)
	if err != nil {
		return nil, err
	}
	if len(results) >= search.Limit {
		return results, nil
	}

	// Ordering by a materialized column keeps the planner off the HNSW index.
	exact := `
		WITH owned AS MATERIALIZED (
			SELECT ` + searchColumns + `, embedding <=> ` + placeholder(1) + ` AS distance
			FROM note
			WHERE owner_id = ` + placeholder(2) + `
				AND interpretation_completed
				AND embedding IS NOT NULL
		)
		SELECT ` + searchColumns + `, 1 - distance AS score
		FROM owned
		ORDER BY distance
		LIMIT ` + placeholder(3)
	return queryNotesWithScore(ctx, tx, exact, vector, search.OwnerID, search.Limit)
}

const searchColumns = `id, uid, owner_id, image_url, title, summary, metadata, created_ts, updated_ts`

func queryNotesWithScore(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*store.NoteWithScore, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		var note store.Note
		var id int64
		var metadata []byte
		var score float64
		if err := rows.Scan(
			&id,
			&note.UID,
			&note.OwnerID,
			&note.ImageURL,
			&note.Title,
			&note.Summary,
			&metadata,
			&note.CreatedTs,
			&note.UpdatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		note.ID = strconv.FormatInt(id, 10)
		note.InterpretationCompleted = true
		note.Metadata = map[string]any{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &note.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal metadata")
			}
		}
		results = append(results, &store.NoteWithScore{Note: &note, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
