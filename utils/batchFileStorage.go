package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
// If explicit JSON is needed (e.g. locally), set GCS_CREDENTIALS_JSON.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SaveBatchFile writes a generated batch file to the local batch directory and,
// when a bucket is configured, archives a copy to Google Cloud Storage. The
// local path is the authoritative file reference stored on the run; the GCS
// copy exists for audit retention and a failed upload does not fail the batch.
func SaveBatchFile(ctx context.Context, dir, bucket, fileName, contents string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch file dir: %w", err)
	}

	localPath := filepath.Join(dir, fileName)
	if err := os.WriteFile(localPath, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("write batch file: %w", err)
	}

	if bucket != "" {
		if err := archiveBatchFileToGCS(ctx, bucket, fileName, contents); err != nil {
			return localPath, fmt.Errorf("batch file written to %s but GCS archive failed: %w", localPath, err)
		}
	}

	return localPath, nil
}

func archiveBatchFileToGCS(ctx context.Context, bucketName, objectName, contents string) error {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %q not found or not accessible: %v", bucketName, err)
	}

	wc := client.Bucket(bucketName).Object("debit-orders/" + objectName).NewWriter(ctx)
	wc.ContentType = "text/plain"
	if _, err := wc.Write([]byte(contents)); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
