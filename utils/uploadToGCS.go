package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	gcsClient   *storage.Client
	gcsClientMu sync.Mutex
)

func getGCSClient(ctx context.Context) (*storage.Client, error) {
	gcsClientMu.Lock()
	defer gcsClientMu.Unlock()
	if gcsClient != nil {
		return gcsClient, nil
	}

	credJSON := os.Getenv("GCS_CREDENTIALS_JSON")
	var (
		c   *storage.Client
		err error
	)
	if credJSON != "" {
		c, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials.
		c, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, err
	}
	gcsClient = c
	return gcsClient, nil
}

// UploadObject writes data to GCS under objectKey and returns the
// access URL for the stored object.
func UploadObject(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	client, err := getGCSClient(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := client.Bucket(bucket).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", objectKey, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", objectKey, err)
	}

	return BuildObjectAccessURL(objectKey), nil
}

// DownloadObject reads an object from GCS and returns its bytes along
// with the stored content type. The read is capped at limit bytes; an
// object larger than the cap is an error, not a truncation.
func DownloadObject(ctx context.Context, objectKey string, limit int64) ([]byte, string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil, "", errors.New("GCS_BUCKET is required")
	}

	client, err := getGCSClient(ctx)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	obj := client.Bucket(bucket).Object(objectKey)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gcs attrs %s: %w", objectKey, err)
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gcs read %s: %w", objectKey, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("gcs read %s: %w", objectKey, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("object %s exceeds %d byte limit", objectKey, limit)
	}
	return data, attrs.ContentType, nil
}

// UploadReceiptImage archives a receipt photo under the owning user's
// prefix and returns its access URL.
func UploadReceiptImage(ctx context.Context, userId int, image []byte) (string, error) {
	objectKey := fmt.Sprintf("%d/receipts/%s.jpg", userId, GenerateUniqueFilename())
	return UploadObject(ctx, objectKey, image, "image/jpeg")
}

// UploadReport stores a generated spreadsheet report and returns its
// access URL.
func UploadReport(ctx context.Context, userId int, filename string, data *bytes.Buffer) (string, error) {
	objectKey := fmt.Sprintf("%d/reports/%s", userId, filename)
	return UploadObject(ctx, objectKey, data.Bytes(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}
