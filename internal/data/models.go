package data

import (
	"time"
)

// Status represents the publication state of a post. Public readers only
// ever see StatusPublished; every other state is admin-only.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusScheduled Status = "scheduled"
	StatusPrivate   Status = "private"
	StatusArchived  Status = "archived"
	StatusTrash     Status = "trash"
)

// Post is the central content entity. Content holds editor-produced HTML;
// Excerpt is authored as markdown and rendered by the view layer.
type Post struct {
	ID             string     `db:"id" json:"id"`
	Slug           string     `db:"slug" json:"slug"`
	Title          string     `db:"title" json:"title"`
	Content        string     `db:"content" json:"content"`
	Excerpt        string     `db:"excerpt" json:"excerpt,omitempty"`
	FeaturedImage  string     `db:"featured_image" json:"featuredImage,omitempty"`
	CategoryID     string     `db:"category_id" json:"categoryId,omitempty"`
	TagIDs         []string   `db:"-" json:"tagIds"`
	SEOTitle       string     `db:"seo_title" json:"seoTitle,omitempty"`
	SEODescription string     `db:"seo_description" json:"seoDescription,omitempty"`
	SEOKeywords    string     `db:"seo_keywords" json:"seoKeywords,omitempty"`
	Status         Status     `db:"status" json:"status"`
	AuthorName     string     `db:"author_name" json:"authorName"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
	PublishedAt    *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	ScheduledAt    *time.Time `db:"scheduled_at" json:"scheduledAt,omitempty"`
}

// IsPublished returns true if the post is visible to public readers.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// Category groups posts. The model is flat: no hierarchy.
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Tag labels posts. Names are deduplicated case-insensitively at creation
// time, so "React" and "react" resolve to the same tag.
type Tag struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ScheduledStatus is the lifecycle state of a scheduled-post projection row.
type ScheduledStatus string

const (
	SchedulePending   ScheduledStatus = "pending"
	SchedulePublished ScheduledStatus = "published"
	ScheduleFailed    ScheduledStatus = "failed"
)

// ScheduledPost is a projection of the server-side publishing queue. The
// application only displays these rows and requests transitions; the
// lifecycle is driven by the publish procedure.
type ScheduledPost struct {
	PostID        string          `db:"post_id" json:"postId"`
	ScheduledAt   time.Time       `db:"scheduled_at" json:"scheduledAt"`
	Status        ScheduledStatus `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastAttemptAt *time.Time      `db:"last_attempt_at" json:"lastAttemptAt,omitempty"`
	ErrorMessage  string          `db:"error_message" json:"errorMessage,omitempty"`
}

// RevisionKind distinguishes explicit revisions from autosave snapshots.
type RevisionKind string

const (
	RevisionManual   RevisionKind = "revision"
	RevisionAutosave RevisionKind = "autosave"
)

// PostRevision is a point-in-time snapshot of a post's editable fields.
// Revisions are created and restored through the gateway procedures; diffs
// shown to users are best-effort text comparison, never authoritative.
type PostRevision struct {
	ID             string       `db:"id" json:"id"`
	PostID         string       `db:"post_id" json:"postId"`
	Kind           RevisionKind `db:"kind" json:"kind"`
	Title          string       `db:"title" json:"title"`
	Content        string       `db:"content" json:"content"`
	Excerpt        string       `db:"excerpt" json:"excerpt,omitempty"`
	SEOTitle       string       `db:"seo_title" json:"seoTitle,omitempty"`
	SEODescription string       `db:"seo_description" json:"seoDescription,omitempty"`
	SEOKeywords    string       `db:"seo_keywords" json:"seoKeywords,omitempty"`
	AuthorName     string       `db:"author_name" json:"authorName"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
}
