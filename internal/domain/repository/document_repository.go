package repository

import "context"

// Document is one retrieved proof-of-delivery file
type Document struct {
	Filename string
	Body     []byte
}

// DocumentRepository fetches shipment documents and stores them where
// subscribers can retrieve them via a time-limited URL
type DocumentRepository interface {
	FetchDocument(ctx context.Context, housebill, docType string) (*Document, error)
	StoreAndSign(ctx context.Context, doc *Document) (string, error)
}
