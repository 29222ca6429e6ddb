package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TagRepositoryDB handles database operations for tags.
type TagRepositoryDB struct {
	db execer
}

// NewTagRepository creates a new TagRepositoryDB.
func NewTagRepository(db execer) *TagRepositoryDB {
	return &TagRepositoryDB{db: db}
}

// CreateTag inserts a new tag.
func (r *TagRepositoryDB) CreateTag(ctx context.Context, tag *Tag) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, tag.ID, tag.Name); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// FindTagByName finds a tag whose name matches case-insensitively.
// Returns nil without error when no tag matches.
func (r *TagRepositoryDB) FindTagByName(ctx context.Context, name string) (*Tag, error) {
	var tag Tag
	query := `SELECT id, name FROM tags WHERE LOWER(name) = ?`
	if err := r.db.GetContext(ctx, &tag, query, strings.ToLower(name)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found is not an error
		}
		return nil, fmt.Errorf("failed to find tag by name: %w", err)
	}
	return &tag, nil
}

// GetAllTags retrieves all tags ordered by name.
func (r *TagRepositoryDB) GetAllTags(ctx context.Context) ([]*Tag, error) {
	var tags []*Tag
	if err := r.db.SelectContext(ctx, &tags, `SELECT id, name FROM tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to get all tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and its post links.
func (r *TagRepositoryDB) DeleteTag(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM post_tags WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tag links: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no tag found to delete with id %s", id)
	}
	return nil
}
