package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/snapnote/store"
)

const noteColumns = `id, uid, owner_id, image_url, embedding, title, summary, metadata, interpretation, interpretation_completed, interpret_attempts, last_attempt_ts, next_attempt_ts, created_ts, updated_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*store.Note, error) {
	var note store.Note
	var id int64
	var embedding, interpretation sql.NullString
	var metadata string
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
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &note.Embedding); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}
	}
	if interpretation.Valid && interpretation.String != "" {
		note.Interpretation = json.RawMessage(interpretation.String)
	}
	note.Metadata = map[string]any{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &note.Metadata); err != nil {
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

	stmt := `INSERT INTO note (uid, owner_id, image_url, metadata) VALUES (` + placeholders(4) + `) RETURNING ` + noteColumns
	note, err := scanNote(d.db.QueryRowContext(ctx, stmt, create.UID, create.OwnerID, create.ImageURL, string(metadata)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}
	return note, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	if v := find.OwnerID; v != nil {
		where, args = append(where, "owner_id = ?"), append(args, *v)
	}
	if v := find.Completed; v != nil {
		where, args = append(where, "interpretation_completed = ?"), append(args, boolToInt(*v))
	}
	if v := find.CreatedBefore; v != nil {
		where, args = append(where, "created_ts < ?"), append(args, *v)
	}
	if v := find.AttemptsBelow; v != nil {
		where, args = append(where, "interpret_attempts < ?"), append(args, *v)
	}
	if v := find.DueBy; v != nil {
		where, args = append(where, "next_attempt_ts <= ?"), append(args, *v)
	}

	order := "created_ts DESC, id DESC"
	if find.OldestFirst {
		order = "created_ts ASC, id ASC"
	}
	query := `SELECT ` + noteColumns + ` FROM note WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
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
	embedding, err := json.Marshal(commit.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		UPDATE note SET
			title = ?,
			summary = ?,
			interpretation = ?,
			embedding = ?,
			metadata = json_patch(COALESCE(metadata, '{}'), ?),
			interpretation_completed = 1,
			updated_ts = strftime('%s', 'now')
		WHERE uid = ?
		RETURNING ` + noteColumns

	note, err := scanNote(d.db.QueryRowContext(ctx, stmt,
		commit.Title,
		commit.Summary,
		string(commit.Interpretation),
		string(embedding),
		string(metadata),
		commit.UID,
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
			last_attempt_ts = ?,
			next_attempt_ts = ?
		WHERE uid = ?
		RETURNING ` + noteColumns

	note, err := scanNote(d.db.QueryRowContext(ctx, stmt, record.AttemptTs, record.NextAttemptTs, record.UID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to record note attempt")
	}
	return note, nil
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note WHERE uid = ?`, delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete note")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("note %s not found", delete.UID)
	}
	return nil
}

// SearchNotesByVector scores every completed note of the owner by cosine similarity.
func (d *DB) SearchNotesByVector(ctx context.Context, search *store.NoteVectorSearch) ([]*store.NoteWithScore, error) {
	completed := true
	notes, err := d.ListNotes(ctx, &store.FindNote{OwnerID: &search.OwnerID, Completed: &completed})
	if err != nil {
		return nil, err
	}

	results := make([]*store.NoteWithScore, 0, len(notes))
	for _, note := range notes {
		if len(note.Embedding) == 0 {
			continue
		}
		if len(note.Embedding) != len(search.Vector) {
			slog.Warn("skipping note with mismatched embedding dimension",
				"note_id", note.UID, "dimension", len(note.Embedding), "expected", len(search.Vector))
			continue
		}
		results = append(results, &store.NoteWithScore{Note: note, Score: cosine(search.Vector, note.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > search.Limit {
		results = results[:search.Limit]
	}
	return results, nil
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
