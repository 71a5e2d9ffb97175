package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrygo/snapnote/store"
)

type noteDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	UID                     string             `bson:"uid"`
	OwnerID                 string             `bson:"owner_id"`
	ImageURL                string             `bson:"image_url"`
	Embedding               []float32          `bson:"embedding,omitempty"`
	Title                   string             `bson:"title"`
	Summary                 string             `bson:"summary"`
	Metadata                bson.M             `bson:"metadata"`
	Interpretation          bson.Raw           `bson:"interpretation,omitempty"`
	InterpretationCompleted bool               `bson:"interpretation_completed"`
	InterpretAttempts       int                `bson:"interpret_attempts"`
	LastAttemptTs           int64              `bson:"last_attempt_ts"`
	NextAttemptTs           int64              `bson:"next_attempt_ts"`
	CreatedTs               int64              `bson:"created_ts"`
	UpdatedTs               int64              `bson:"updated_ts"`
	Score                   float64            `bson:"score,omitempty"`
}

func (doc *noteDocument) toNote() (*store.Note, error) {
	note := &store.Note{
		ID:                      doc.ID.Hex(),
		UID:                     doc.UID,
		OwnerID:                 doc.OwnerID,
		ImageURL:                doc.ImageURL,
		Embedding:               doc.Embedding,
		Title:                   doc.Title,
		Summary:                 doc.Summary,
		Metadata:                map[string]any{},
		InterpretationCompleted: doc.InterpretationCompleted,
		InterpretAttempts:       doc.InterpretAttempts,
		LastAttemptTs:           doc.LastAttemptTs,
		NextAttemptTs:           doc.NextAttemptTs,
		CreatedTs:               doc.CreatedTs,
		UpdatedTs:               doc.UpdatedTs,
	}
	for k, v := range doc.Metadata {
		note.Metadata[k] = v
	}
	if len(doc.Interpretation) > 0 {
		raw, err := bson.MarshalExtJSON(doc.Interpretation, false, false)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode interpretation")
		}
		note.Interpretation = json.RawMessage(raw)
	}
	return note, nil
}

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	now := time.Now().Unix()
	doc := &noteDocument{
		UID:       create.UID,
		OwnerID:   create.OwnerID,
		ImageURL:  create.ImageURL,
		Metadata:  bson.M{},
		CreatedTs: now,
		UpdatedTs: now,
	}
	for k, v := range create.Metadata {
		doc.Metadata[k] = v
	}

	result, err := d.notes.InsertOne(ctx, doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toNote()
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	filter := bson.D{}
	if find.ID != nil {
		id, err := primitive.ObjectIDFromHex(*find.ID)
		if err != nil {
			return []*store.Note{}, nil
		}
		filter = append(filter, bson.E{Key: "_id", Value: id})
	}
	if find.UID != nil {
		filter = append(filter, bson.E{Key: "uid", Value: *find.UID})
	}
	if find.OwnerID != nil {
		filter = append(filter, bson.E{Key: "owner_id", Value: *find.OwnerID})
	}
	if find.Completed != nil {
		filter = append(filter, bson.E{Key: "interpretation_completed", Value: *find.Completed})
	}
	if find.CreatedBefore != nil {
		filter = append(filter, bson.E{Key: "created_ts", Value: bson.D{{Key: "$lt", Value: *find.CreatedBefore}}})
	}
	if find.AttemptsBelow != nil {
		filter = append(filter, bson.E{Key: "interpret_attempts", Value: bson.D{{Key: "$lt", Value: *find.AttemptsBelow}}})
	}
	if find.DueBy != nil {
		filter = append(filter, bson.E{Key: "next_attempt_ts", Value: bson.D{{Key: "$lte", Value: *find.DueBy}}})
	}

	direction := -1
	if find.OldestFirst {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_ts", Value: direction}, {Key: "_id", Value: direction}})
	if find.Limit != nil {
		opts.SetLimit(int64(*find.Limit))
	}

	cursor, err := d.notes.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	defer cursor.Close(ctx)

	list := []*store.Note{}
	for cursor.Next(ctx) {
		var doc noteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode note")
		}
		note, err := doc.toNote()
		if err != nil {
			return nil, err
		}
		list = append(list, note)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CommitNoteInterpretation(ctx context.Context, commit *store.CommitNoteInterpretation) (*store.Note, error) {
	var interpretation bson.D
	if err := bson.UnmarshalExtJSON(commit.Interpretation, false, &interpretation); err != nil {
		return nil, errors.Wrap(err, "failed to convert interpretation")
	}

	set := bson.D{
		{Key: "title", Value: commit.Title},
		{Key: "summary", Value: commit.Summary},
		{Key: "interpretation", Value: interpretation},
		{Key: "embedding", Value: commit.Embedding},
		{Key: "interpretation_completed", Value: true},
		{Key: "updated_ts", Value: time.Now().Unix()},
	}
	// Merge flags into the existing metadata document; sorted for a stable update document.
	keys := make([]string, 0, len(commit.Metadata))
	for k := range commit.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set = append(set, bson.E{Key: "metadata." + k, Value: commit.Metadata[k]})
	}

	// A single-document update is atomic in MongoDB.
	result := d.notes.FindOneAndUpdate(ctx,
		bson.D{{Key: "uid", Value: commit.UID}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc noteDocument
	if err := result.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to commit note interpretation")
	}
	return doc.toNote()
}

func (d *DB) RecordNoteAttempt(ctx context.Context, record *store.RecordNoteAttempt) (*store.Note, error) {
	result := d.notes.FindOneAndUpdate(ctx,
		bson.D{{Key: "uid", Value: record.UID}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "interpret_attempts", Value: 1}}},
			{Key: "$set", Value: bson.D{
				{Key: "last_attempt_ts", Value: record.AttemptTs},
				{Key: "next_attempt_ts", Value: record.NextAttemptTs},
			}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc noteDocument
	if err := result.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to record note attempt")
	}
	return doc.toNote()
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	result, err := d.notes.DeleteOne(ctx, bson.D{{Key: "uid", Value: delete.UID}})
	if err != nil {
		return errors.Wrap(err, "failed to delete note")
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("note %s not found", delete.UID)
	}
	return nil
}

// SearchNotesByVector runs an Atlas $vectorSearch aggregation.
func (d *DB) SearchNotesByVector(ctx context.Context, search *store.NoteVectorSearch) ([]*store.NoteWithScore, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: d.vectorIndex},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: search.Vector},
			{Key: "numCandidates", Value: search.NumCandidates},
			{Key: "limit", Value: search.Limit},
			{Key: "filter", Value: bson.D{
				{Key: "owner_id", Value: search.OwnerID},
				{Key: "interpretation_completed", Value: true},
			}},
		}}},
		{{Key: "$set", Value: bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "embedding", Value: 0}, {Key: "interpretation", Value: 0}}}},
	}

	cursor, err := d.notes.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer cursor.Close(ctx)

	results := []*store.NoteWithScore{}
	for cursor.Next(ctx) {
		var doc noteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode vector search result")
		}
		note, err := doc.toNote()
		if err != nil {
			return nil, err
		}
		results = append(results, &store.NoteWithScore{Note: note, Score: cosineFromAtlasScore(doc.Score)})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// cosineFromAtlasScore maps Atlas' cosine score, (1 + cos) / 2, back to cosine similarity.
func cosineFromAtlasScore(score float64) float32 {
	return float32(score*2 - 1)
}
