package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionEmailBodies = "email_bodies"

	// Compression threshold - only compress if content is larger than this
	compressionThreshold = 1024 // 1KB
)

// EmailBodyAdapter implements domain.EmailBodyRepository using MongoDB.
// Body text sits outside the relational store; the matcher only pulls it
// when a rule carries body keywords.
type EmailBodyAdapter struct {
	collection *mongo.Collection
}

// NewEmailBodyAdapter creates a new MongoDB email body adapter.
func NewEmailBodyAdapter(db *mongo.Database) *EmailBodyAdapter {
	return &EmailBodyAdapter{collection: db.Collection(collectionEmailBodies)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *EmailBodyAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "email_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "stored_at", Value: 1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// emailBodyDocument represents the MongoDB document structure.
type emailBodyDocument struct {
	OwnerID string `bson:"owner_id"`
	EmailID int64  `bson:"email_id"`

	// Content (potentially compressed)
	Text         []byte `bson:"text"`
	IsCompressed bool   `bson:"is_compressed"`

	OriginalSize   int64 `bson:"original_size"`
	CompressedSize int64 `bson:"compressed_size"`

	StoredAt time.Time `bson:"stored_at"`
}

// SaveBody stores the full body text for an email, replacing any prior copy.
func (a *EmailBodyAdapter) SaveBody(ctx context.Context, ownerID uuid.UUID, emailID int64, body string) error {
	raw := []byte(body)
	originalSize := int64(len(raw))

	isCompressed := false
	if originalSize > compressionThreshold {
		compressed, err := compress(raw)
		if err != nil {
			return fmt.Errorf("failed to compress body: %w", err)
		}
		raw = compressed
		isCompressed = true
	}

	doc := &emailBodyDocument{
		OwnerID:        ownerID.String(),
		EmailID:        emailID,
		Text:           raw,
		IsCompressed:   isCompressed,
		OriginalSize:   originalSize,
		CompressedSize: int64(len(raw)),
		StoredAt:       time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"owner_id": ownerID.String(), "email_id": emailID}

	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save email body: %w", err)
	}

	return nil
}

// GetBody retrieves the full body text for an email. Returns the empty
// string when no body is stored; snippet matching handles that case.
func (a *EmailBodyAdapter) GetBody(ctx context.Context, ownerID uuid.UUID, emailID int64) (string, error) {
	var doc emailBodyDocument
	filter := bson.M{"owner_id": ownerID.String(), "email_id": emailID}

	err := a.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", fmt.Errorf("failed to get email body: %w", err)
	}

	raw := doc.Text
	if doc.IsCompressed {
		raw, err = decompress(doc.Text)
		if err != nil {
			return "", fmt.Errorf("failed to decompress body: %w", err)
		}
	}

	return string(raw), nil
}

// DeleteBody removes the stored body for an email.
func (a *EmailBodyAdapter) DeleteBody(ctx context.Context, ownerID uuid.UUID, emailID int64) error {
	filter := bson.M{"owner_id": ownerID.String(), "email_id": emailID}

	if _, err := a.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete email body: %w", err)
	}

	return nil
}

// DeleteByOwner removes every stored body for an owner.
func (a *EmailBodyAdapter) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	filter := bson.M{"owner_id": ownerID.String()}

	result, err := a.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete owner bodies: %w", err)
	}

	return result.DeletedCount, nil
}

// =============================================================================
// Compression Helpers
// =============================================================================

func compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

var _ domain.EmailBodyRepository = (*EmailBodyAdapter)(nil)
