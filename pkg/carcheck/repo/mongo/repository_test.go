package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

func TestClassificationPreservedThroughDocument(t *testing.T) {
	payload := `{
		"cleanliness": {"level": "dirty", "score": 0.35, "dirtScore": 12},
		"integrity": {"level": "damaged", "defectCount": 3, "defectCounts": {"rust": 2, "scratch": 1}},
		"overallScore": 0.42,
		"recommendation": {"buy": false, "confidence": "high", "message": "needs repair"},
		"summary": {"isClean": false, "isIntact": false, "totalDefects": 3, "damageSeverity": "moderate"}
	}`

	file := &carcheck.FileRecord{
		ID:             uuid.New(),
		FileName:       "file-1.jpg",
		IsAnalyzed:     true,
		Classification: json.RawMessage(payload),
		UploadedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	doc, err := toDocument(file)
	require.NoError(t, err)
	assert.Equal(t, file.ID.String(), doc.ID)

	back, err := doc.toRecord()
	require.NoError(t, err)
	assert.Equal(t, file.ID, back.ID)
	assert.True(t, back.IsAnalyzed)
	assert.JSONEq(t, payload, string(back.Classification))
}

func TestClassificationMustBeObject(t *testing.T) {
	_, err := classificationToBSON(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
}

func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	repo := New(client.Database("carchecker_test"))
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func newRecord(name string, uploadedAt time.Time) *carcheck.FileRecord {
	return &carcheck.FileRecord{
		ID:           uuid.New(),
		FileName:     name,
		OriginalName: "car.webp",
		URL:          "http://localhost:1015/uploads/" + name,
		Size:         4096,
		MimeType:     "image/webp",
		UploadedAt:   uploadedAt,
		CreatedAt:    uploadedAt,
		UpdatedAt:    uploadedAt,
	}
}

func TestMongoRepository_FileLifecycle(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	file := newRecord("file-1.webp", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, repo.Create(ctx, file))
	assert.Error(t, repo.Create(ctx, newRecord("file-1.webp", time.Now())), "filename is unique")

	got, err := repo.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.UploadedAt, got.UploadedAt)
	assert.False(t, got.IsAnalyzed)

	updated, err := repo.UpdateClassification(ctx, file.ID, json.RawMessage(`{"overallScore":0.8}`))
	require.NoError(t, err)
	assert.True(t, updated.IsAnalyzed)
	assert.JSONEq(t, `{"overallScore":0.8}`, string(updated.Classification))

	require.NoError(t, repo.Delete(ctx, file.ID))
	_, err = repo.Get(ctx, file.ID)
	assert.ErrorIs(t, err, carcheck.ErrFileNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, file.ID), carcheck.ErrFileNotFound)
}

func TestMongoRepository_List(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Create(ctx, newRecord(fmt.Sprintf("file-%02d.webp", i), base.Add(time.Duration(i)*time.Minute))))
	}

	files, total, err := repo.List(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, files, 5)
	assert.Equal(t, "file-11.webp", files[0].FileName)
}
