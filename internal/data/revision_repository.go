package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RevisionRepository handles database operations for post revisions.
type RevisionRepository struct {
	db *sqlx.DB
}

// NewRevisionRepository creates a new RevisionRepository.
func NewRevisionRepository(db *sqlx.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

const revisionColumns = `id, post_id, kind, title, content, excerpt,
	seo_title, seo_description, seo_keywords, author_name, created_at`

// CreateRevision inserts a revision snapshot.
func (r *RevisionRepository) CreateRevision(ctx context.Context, rev *PostRevision) error {
	query := `INSERT INTO post_revisions (id, post_id, kind, title, content, excerpt,
		seo_title, seo_description, seo_keywords, author_name, created_at)
		VALUES (:id, :post_id, :kind, :title, :content, :excerpt,
		:seo_title, :seo_description, :seo_keywords, :author_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rev); err != nil {
		return fmt.Errorf("failed to create revision: %w", err)
	}
	return nil
}

// GetRevisionByID retrieves a single revision.
func (r *RevisionRepository) GetRevisionByID(ctx context.Context, id string) (*PostRevision, error) {
	var rev PostRevision
	query := `SELECT ` + revisionColumns + ` FROM post_revisions WHERE id = ?`
	if err := r.db.GetContext(ctx, &rev, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("revision with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get revision by id: %w", err)
	}
	return &rev, nil
}

// GetRevisionsByPostID retrieves all revisions of a post, newest first.
func (r *RevisionRepository) GetRevisionsByPostID(ctx context.Context, postID string) ([]*PostRevision, error) {
	var revs []*PostRevision
	query := `SELECT ` + revisionColumns + ` FROM post_revisions WHERE post_id = ? ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &revs, query, postID); err != nil {
		return nil, fmt.Errorf("failed to get revisions for post %s: %w", postID, err)
	}
	return revs, nil
}
