package data

import (
	"context"
	"database/sql"
	"fmt"
)

// CategoryRepositoryDB handles database operations for categories.
type CategoryRepositoryDB struct {
	db execer
}

// execer is the subset of sqlx.DB used by the small repositories. It keeps
// them usable inside transactions from the gateway.
type execer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// NewCategoryRepository creates a new CategoryRepositoryDB.
func NewCategoryRepository(db execer) *CategoryRepositoryDB {
	return &CategoryRepositoryDB{db: db}
}

// CreateCategory inserts a new category.
func (r *CategoryRepositoryDB) CreateCategory(ctx context.Context, category *Category) error {
	query := `INSERT INTO categories (id, name, slug) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, category.ID, category.Name, category.Slug); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// GetCategoryByID retrieves a category by id.
func (r *CategoryRepositoryDB) GetCategoryByID(ctx context.Context, id string) (*Category, error) {
	var category Category
	if err := r.db.GetContext(ctx, &category, `SELECT id, name, slug FROM categories WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("category with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get category by id: %w", err)
	}
	return &category, nil
}

// GetAllCategories retrieves all categories ordered by name.
func (r *CategoryRepositoryDB) GetAllCategories(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	if err := r.db.SelectContext(ctx, &categories, `SELECT id, name, slug FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to get all categories: %w", err)
	}
	return categories, nil
}

// DeleteCategory removes a category by id. Posts referencing it keep a
// dangling category_id, which readers tolerate as "uncategorized".
func (r *CategoryRepositoryDB) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no category found to delete with id %s", id)
	}
	return nil
}
