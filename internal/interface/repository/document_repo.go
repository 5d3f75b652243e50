package repository

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"

	"github.com/minio/minio-go/v7"
)

// DocumentAPIRepository fetches proof-of-delivery documents over HTTP
// and stores them in the documents bucket, handing back a time-limited
// retrieval URL used as the payload's vpod field.
type DocumentAPIRepository struct {
	logger       logger.Logger
	baseURL      string
	apiKey       string
	client       *http.Client
	blob         *minio.Client
	bucket       string
	signedURLTTL time.Duration
}

// NewDocumentAPIRepository creates a new document repository
func NewDocumentAPIRepository(baseURL, apiKey string, timeout time.Duration, blob *minio.Client, bucket string, signedURLTTL time.Duration, log logger.Logger) repository.DocumentRepository {
	return &DocumentAPIRepository{
		logger:       log,
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: timeout},
		blob:         blob,
		bucket:       bucket,
		signedURLTTL: signedURLTTL,
	}
}

// FetchDocument retrieves one document by housebill and document type
func (r *DocumentAPIRepository) FetchDocument(ctx context.Context, housebill, docType string) (*repository.Document, error) {
	url := fmt.Sprintf("%s/%s/housebill=%s/doctype=%s", r.baseURL, r.apiKey, housebill, docType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create document request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call document api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document api returned status %d for housebill %s", resp.StatusCode, housebill)
	}

	var response struct {
		WtDocs struct {
			WtDoc []struct {
				Filename string `json:"filename"`
				B64Str   string `json:"b64str"`
			} `json:"wtDoc"`
		} `json:"wtDocs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode document response: %w", err)
	}
	if len(response.WtDocs.WtDoc) == 0 {
		return nil, fmt.Errorf("no document returned for housebill %s, doctype %s", housebill, docType)
	}

	doc := response.WtDocs.WtDoc[0]
	body, err := base64.StdEncoding.DecodeString(doc.B64Str)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document body: %w", err)
	}

	r.logger.Info("Fetched document",
		"housebill", housebill,
		"docType", docType,
		"filename", doc.Filename,
		"bytes", len(body))

	return &repository.Document{
		Filename: doc.Filename,
		Body:     body,
	}, nil
}

// StoreAndSign uploads the document to the bucket and returns a
// presigned retrieval URL
func (r *DocumentAPIRepository) StoreAndSign(ctx context.Context, doc *repository.Document) (string, error) {
	reader := bytes.NewReader(doc.Body)
	_, err := r.blob.PutObject(ctx, r.bucket, doc.Filename, reader, int64(len(doc.Body)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to store document %s: %w", doc.Filename, err)
	}

	signed, err := r.blob.PresignedGetObject(ctx, r.bucket, doc.Filename, r.signedURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign document %s: %w", doc.Filename, err)
	}
	return signed.String(), nil
}
