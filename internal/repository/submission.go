// Package repository wraps the SQL used by the API and worker.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no submission exists for a reference id.
var ErrNotFound = errors.New("submission not found")

// StoredFile describes one uploaded document inside a submission manifest.
type StoredFile struct {
	Name        string `json:"name"`
	ObjectKey   string `json:"objectKey"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Pages       int    `json:"pages,omitempty"`
}

// Submission represents a row in the submissions table.
type Submission struct {
	Ref           string       `json:"ref"`
	ClientName    string       `json:"clientName"`
	ClientEmail   string       `json:"clientEmail"`
	ClientPhone   string       `json:"clientPhone,omitempty"`
	ReturnType    string       `json:"returnType,omitempty"`
	Dependents    string       `json:"dependents,omitempty"`
	ClientMessage string       `json:"clientMessage,omitempty"`
	Files         []StoredFile `json:"files"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// SubmissionRepository persists intake submissions.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository constructs a repository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts a submission with its file manifest.
func (r *SubmissionRepository) Create(ctx context.Context, sub *Submission) error {
	sub.CreatedAt = time.Now().UTC()
	manifest, err := json.Marshal(sub.Files)
	if err != nil {
		return fmt.Errorf("marshal file manifest: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO submissions (ref, client_name, client_email, client_phone, return_type, dependents, client_message, files, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sub.Ref, sub.ClientName, sub.ClientEmail, sub.ClientPhone, sub.ReturnType, sub.Dependents, sub.ClientMessage, manifest, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Get returns a submission by reference id.
func (r *SubmissionRepository) Get(ctx context.Context, ref string) (*Submission, error) {
	var (
		sub      Submission
		manifest []byte
	)
	row := r.pool.QueryRow(ctx, `
		SELECT ref, client_name, client_email, client_phone, return_type, dependents, client_message, files, created_at
		FROM submissions WHERE ref=$1
	`, ref)
	if err := row.Scan(&sub.Ref, &sub.ClientName, &sub.ClientEmail, &sub.ClientPhone, &sub.ReturnType, &sub.Dependents, &sub.ClientMessage, &manifest, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select submission: %w", err)
	}
	if err := json.Unmarshal(manifest, &sub.Files); err != nil {
		return nil, fmt.Errorf("decode file manifest: %w", err)
	}
	return &sub, nil
}
