package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostRepository is the sqlx-backed row store for posts. Tag links live in
// the post_tags join table and are loaded into Post.TagIDs on every read.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, slug, title, content, excerpt, featured_image, category_id,
	seo_title, seo_description, seo_keywords, status, author_name,
	created_at, updated_at, published_at, scheduled_at`

// CreatePost inserts a new post and its tag links.
func (r *PostRepository) CreatePost(ctx context.Context, post *Post) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin create post tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO posts (id, slug, title, content, excerpt, featured_image,
		category_id, seo_title, seo_description, seo_keywords, status, author_name,
		created_at, updated_at, published_at, scheduled_at)
		VALUES (:id, :slug, :title, :content, :excerpt, :featured_image,
		:category_id, :seo_title, :seo_description, :seo_keywords, :status, :author_name,
		:created_at, :updated_at, :published_at, :scheduled_at)`
	if _, err := tx.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("failed to execute create post query: %w", err)
	}
	if err := replaceTagLinks(ctx, tx, post.ID, post.TagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPostByID retrieves a single post by its id.
func (r *PostRepository) GetPostByID(ctx context.Context, id string) (*Post, error) {
	var post Post
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("post with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get post by id: %w", err)
	}
	if err := r.loadTagIDs(ctx, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost rewrites a post row and its tag links.
func (r *PostRepository) UpdatePost(ctx context.Context, post *Post) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update post tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE posts SET slug = :slug, title = :title, content = :content,
		excerpt = :excerpt, featured_image = :featured_image, category_id = :category_id,
		seo_title = :seo_title, seo_description = :seo_description, seo_keywords = :seo_keywords,
		status = :status, updated_at = :updated_at, published_at = :published_at,
		scheduled_at = :scheduled_at WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, post)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no post found to update with id %s", post.ID)
	}
	if err := replaceTagLinks(ctx, tx, post.ID, post.TagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePost removes a post and its tag links.
func (r *PostRepository) DeletePost(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete post tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete post tag links: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no post found to delete with id %s", id)
	}
	return tx.Commit()
}

// GetAllPosts retrieves every post regardless of status, newest first.
func (r *PostRepository) GetAllPosts(ctx context.Context) ([]*Post, error) {
	var posts []*Post
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &posts, query); err != nil {
		return nil, fmt.Errorf("failed to get all posts: %w", err)
	}
	for _, p := range posts {
		if err := r.loadTagIDs(ctx, p); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// GetPostsByStatus retrieves up to limit posts with the given status, newest
// first. A limit of 0 means no limit.
func (r *PostRepository) GetPostsByStatus(ctx context.Context, status Status, limit int) ([]*Post, error) {
	var posts []*Post
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = ? ORDER BY created_at DESC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get posts by status: %w", err)
	}
	for _, p := range posts {
		if err := r.loadTagIDs(ctx, p); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// SearchPosts performs a substring search over title and content.
func (r *PostRepository) SearchPosts(ctx context.Context, q string) ([]*Post, error) {
	var posts []*Post
	pattern := "%" + q + "%"
	query := `SELECT ` + postColumns + ` FROM posts WHERE title LIKE ? OR content LIKE ? ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &posts, query, pattern, pattern); err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	for _, p := range posts {
		if err := r.loadTagIDs(ctx, p); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (r *PostRepository) loadTagIDs(ctx context.Context, post *Post) error {
	var ids []string
	query := `SELECT tag_id FROM post_tags WHERE post_id = ?`
	if err := r.db.SelectContext(ctx, &ids, query, post.ID); err != nil {
		return fmt.Errorf("failed to load tag ids for post %s: %w", post.ID, err)
	}
	post.TagIDs = ids
	return nil
}

func replaceTagLinks(ctx context.Context, tx *sqlx.Tx, postID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear tag links: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, tagID); err != nil {
			return fmt.Errorf("failed to insert tag link: %w", err)
		}
	}
	return nil
}
