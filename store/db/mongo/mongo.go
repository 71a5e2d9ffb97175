package mongo

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/store"
)

// MongoDB Atlas stores notes as documents and answers similarity search with
// $vectorSearch, pre-filtered by owner through the vector index filter fields.

const (
	defaultCollection  = "notes"
	defaultVectorIndex = "note_embedding_index"
)

type DB struct {
	client      *mongo.Client
	database    *mongo.Database
	notes       *mongo.Collection
	vectorIndex string
	profile     *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(profile.DSN))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongo")
	}

	database := client.Database(profile.MongoDatabase)
	return &DB{
		client:      client,
		database:    database,
		notes:       database.Collection(defaultCollection),
		vectorIndex: defaultVectorIndex,
		profile:     profile,
	}, nil
}

func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	names, err := d.database.ListCollectionNames(ctx, bson.D{{Key: "name", Value: defaultCollection}})
	if err != nil {
		return false, errors.Wrap(err, "failed to list collections")
	}
	return len(names) > 0, nil
}

type schemaFile struct {
	Collection string `json:"collection"`
	Indexes    []struct {
		Name   string   `json:"name"`
		Keys   []string `json:"keys"`
		Unique bool     `json:"unique"`
	} `json:"indexes"`
	VectorSearchIndex *struct {
		Name       string          `json:"name"`
		Definition json.RawMessage `json:"definition"`
	} `json:"vectorSearchIndex"`
}

// ApplySchema creates the notes collection, its indexes and, on Atlas, the vector search index.
func (d *DB) ApplySchema(ctx context.Context, schema string) error {
	var file schemaFile
	if err := json.Unmarshal([]byte(schema), &file); err != nil {
		return errors.Wrap(err, "failed to parse mongo schema")
	}
	if file.Collection != "" && file.Collection != defaultCollection {
		return errors.Errorf("unexpected collection %q in schema", file.Collection)
	}

	if err := d.database.CreateCollection(ctx, defaultCollection); err != nil {
		return errors.Wrap(err, "failed to create notes collection")
	}

	models := make([]mongo.IndexModel, 0, len(file.Indexes))
	for _, idx := range file.Indexes {
		keys := bson.D{}
		for _, key := range idx.Keys {
			keys = append(keys, bson.E{Key: key, Value: 1})
		}
		models = append(models, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetName(idx.Name).SetUnique(idx.Unique),
		})
	}
	if len(models) > 0 {
		if _, err := d.notes.Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrap(err, "failed to create indexes")
		}
	}

	if file.VectorSearchIndex != nil {
		var definition bson.D
		if err := bson.UnmarshalExtJSON(file.VectorSearchIndex.Definition, false, &definition); err != nil {
			return errors.Wrap(err, "failed to parse vector search index definition")
		}
		cmd := bson.D{
			{Key: "createSearchIndexes", Value: defaultCollection},
			{Key: "indexes", Value: bson.A{bson.D{
				{Key: "name", Value: file.VectorSearchIndex.Name},
				{Key: "type", Value: "vectorSearch"},
				{Key: "definition", Value: definition},
			}}},
		}
		// Only Atlas deployments serve search indexes; a plain mongod rejects the command.
		if err := d.database.RunCommand(ctx, cmd).Err(); err != nil {
			slog.Warn("failed to create vector search index, similarity search needs an Atlas deployment",
				"index", file.VectorSearchIndex.Name, "error", err)
		} else {
			d.vectorIndex = file.VectorSearchIndex.Name
		}
	}
	return nil
}
