// Package gateway is the boundary between the in-memory session state and
// the backing services: the SQL row store, object storage, the remote
// procedures and the realtime change feed. The aggregate store and the
// reconciler only ever see the Gateway interface, so they can be exercised
// against fakes the same way the original client treated its hosted
// backend as an external collaborator.
package gateway

import (
	"context"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/realtime"
)

// Gateway is the full remote surface consumed by the session components.
type Gateway interface {
	// Row-level CRUD. Create calls assign server-side identity and
	// timestamps on the passed record.
	CreatePost(ctx context.Context, post *data.Post) error
	UpdatePost(ctx context.Context, post *data.Post) error
	DeletePost(ctx context.Context, id string) error
	ListAllPosts(ctx context.Context) ([]*data.Post, error)
	ListPublishedPosts(ctx context.Context, limit int) ([]*data.Post, error)
	SearchPosts(ctx context.Context, q string) ([]*data.Post, error)

	CreateCategory(ctx context.Context, category *data.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]*data.Category, error)

	CreateTag(ctx context.Context, tag *data.Tag) error
	FindTagByName(ctx context.Context, name string) (*data.Tag, error)
	DeleteTag(ctx context.Context, id string) error
	ListTags(ctx context.Context) ([]*data.Tag, error)

	// Upload stores an image and returns derived size URLs.
	Upload(ctx context.Context, name string, payload []byte) (map[string]string, error)

	// Remote procedures.
	CreateRevision(ctx context.Context, postID string, kind data.RevisionKind, author string) (*data.PostRevision, error)
	RestoreRevision(ctx context.Context, postID, revisionID, author string) (*data.Post, error)
	PublishDueScheduledPosts(ctx context.Context) (int, error)
	ListRevisions(ctx context.Context, postID string) ([]*data.PostRevision, error)
	ListScheduled(ctx context.Context) ([]*data.ScheduledPost, error)

	// Subscribe delivers change events for one table until the returned
	// unsubscribe function is called or ctx is cancelled.
	Subscribe(ctx context.Context, table realtime.Table, fn func(realtime.Event)) (func(), error)
}
