package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// CollectionName is the collection file records live in.
const CollectionName = "files"

// Repository implements carcheck.Repository on a MongoDB collection
type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New creates a repository over the files collection of db
func New(db *mongo.Database) *Repository {
	return &Repository{
		coll: db.Collection(CollectionName),
		now:  time.Now,
	}
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes list and lookup queries rely on.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploadedAt", Value: -1}}},
		{Keys: bson.D{{Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "isAnalyzed", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// fileDocument is the stored shape of a carcheck.FileRecord.
type fileDocument struct {
	ID             string    `bson:"_id"`
	FileName       string    `bson:"filename"`
	OriginalName   string    `bson:"originalName"`
	URL            string    `bson:"url"`
	Size           int64     `bson:"size"`
	MimeType       string    `bson:"mimetype"`
	UploadedAt     time.Time `bson:"uploadedAt"`
	IsAnalyzed     bool      `bson:"isAnalyzed"`
	Classification bson.Raw  `bson:"classification,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func toDocument(file *carcheck.FileRecord) (*fileDocument, error) {
	doc := &fileDocument{
		ID:           file.ID.String(),
		FileName:     file.FileName,
		OriginalName: file.OriginalName,
		URL:          file.URL,
		Size:         file.Size,
		MimeType:     file.MimeType,
		UploadedAt:   file.UploadedAt,
		IsAnalyzed:   file.IsAnalyzed,
		CreatedAt:    file.CreatedAt,
		UpdatedAt:    file.UpdatedAt,
	}
	if carcheck.HasClassification(file.Classification) {
		raw, err := classificationToBSON(file.Classification)
		if err != nil {
			return nil, err
		}
		doc.Classification = raw
	}
	return doc, nil
}

func (d *fileDocument) toRecord() (*carcheck.FileRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored id %q: %w", d.ID, err)
	}
	file := &carcheck.FileRecord{
		ID:           id,
		FileName:     d.FileName,
		OriginalName: d.OriginalName,
		URL:          d.URL,
		Size:         d.Size,
		MimeType:     d.MimeType,
		UploadedAt:   d.UploadedAt.UTC(),
		IsAnalyzed:   d.IsAnalyzed,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if len(d.Classification) > 0 {
		classification, err := classificationFromBSON(d.Classification)
		if err != nil {
			return nil, err
		}
		file.Classification = classification
	}
	return file, nil
}

// classificationToBSON turns a JSON object into an embedded document so it
// stays queryable from the mongo shell.
func classificationToBSON(raw json.RawMessage) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("classification must be a JSON object: %w", err)
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classification: %w", err)
	}
	return bson.Raw(data), nil
}

func classificationFromBSON(raw bson.Raw) (json.RawMessage, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}
	return json.RawMessage(data), nil
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}}
}

func (r *Repository) Create(ctx context.Context, file *carcheck.FileRecord) error {
	doc, err := toDocument(file)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("file already exists: %w", err)
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*carcheck.FileRecord, error) {
	var doc fileDocument
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, carcheck.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return doc.toRecord()
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*carcheck.FileRecord, int64, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}

	var docs []fileDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to read files: %w", err)
	}

	files := make([]*carcheck.FileRecord, 0, len(docs))
	for i := range docs {
		file, err := docs[i].toRecord()
		if err != nil {
			return nil, 0, err
		}
		files = append(files, file)
	}
	return files, total, nil
}

func (r *Repository) UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*carcheck.FileRecord, error) {
	raw, err := classificationToBSON(classification)
	if err != nil {
		return nil, err
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "classification", Value: raw},
		{Key: "isAnalyzed", Value: true},
		{Key: "updatedAt", Value: r.now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc fileDocument
	if err := r.coll.FindOneAndUpdate(ctx, byID(id), update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, carcheck.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to update classification: %w", err)
	}
	return doc.toRecord()
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if res.DeletedCount == 0 {
		return carcheck.ErrFileNotFound
	}
	return nil
}
