package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/realtime"
	"go-blog-cms/internal/storage"
)

// SQLGateway implements Gateway over the sqlx repositories, object storage
// and the redis change feed. Every successful mutation publishes a change
// event; feed publish failures are logged but never fail the mutation,
// since the row change has already committed.
type SQLGateway struct {
	posts      *data.PostRepository
	categories *data.CategoryRepositoryDB
	tags       *data.TagRepositoryDB
	revisions  *data.RevisionRepository
	scheduled  *data.ScheduledRepository
	media      *storage.MediaStore
	feed       *realtime.Feed
	log        logger.Logger
}

// NewSQLGateway wires a gateway over the given database, media store and
// feed. media may be nil when object storage is not configured; Upload then
// fails cleanly.
func NewSQLGateway(db *sqlx.DB, media *storage.MediaStore, feed *realtime.Feed, log logger.Logger) *SQLGateway {
	return &SQLGateway{
		posts:      data.NewPostRepository(db),
		categories: data.NewCategoryRepository(db),
		tags:       data.NewTagRepository(db),
		revisions:  data.NewRevisionRepository(db),
		scheduled:  data.NewScheduledRepository(db),
		media:      media,
		feed:       feed,
		log:        log,
	}
}

func (g *SQLGateway) publish(ctx context.Context, ev realtime.Event) {
	if g.feed == nil {
		return
	}
	if err := g.feed.Publish(ctx, ev); err != nil {
		g.log.Error(err, fmt.Sprintf("failed to publish %s %s event", ev.Table, ev.Op))
	}
}

// CreatePost assigns identity and timestamps, persists the row and emits an
// insert event.
func (g *SQLGateway) CreatePost(ctx context.Context, post *data.Post) error {
	now := time.Now()
	post.ID = uuid.NewString()
	post.CreatedAt = now
	post.UpdatedAt = now
	if err := g.posts.CreatePost(ctx, post); err != nil {
		return err
	}
	if post.Status == data.StatusScheduled && post.ScheduledAt != nil {
		if err := g.scheduled.UpsertPending(ctx, post.ID, *post.ScheduledAt); err != nil {
			return err
		}
	}
	g.publish(ctx, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpInsert, ID: post.ID, Status: post.Status})
	return nil
}

// UpdatePost persists the row and keeps the scheduled-post projection in
// step: entering scheduled status records a pending row, leaving it by any
// route other than publishing clears the row.
func (g *SQLGateway) UpdatePost(ctx context.Context, post *data.Post) error {
	if err := g.posts.UpdatePost(ctx, post); err != nil {
		return err
	}
	if post.Status == data.StatusScheduled && post.ScheduledAt != nil {
		if err := g.scheduled.UpsertPending(ctx, post.ID, *post.ScheduledAt); err != nil {
			return err
		}
	} else if post.Status != data.StatusPublished {
		if err := g.scheduled.Remove(ctx, post.ID); err != nil {
			return err
		}
	}
	g.publish(ctx, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, ID: post.ID, Status: post.Status})
	return nil
}

func (g *SQLGateway) DeletePost(ctx context.Context, id string) error {
	if err := g.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	if err := g.scheduled.Remove(ctx, id); err != nil {
		return err
	}
	g.publish(ctx, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpDelete, ID: id})
	return nil
}

func (g *SQLGateway) ListAllPosts(ctx context.Context) ([]*data.Post, error) {
	return g.posts.GetAllPosts(ctx)
}

func (g *SQLGateway) ListPublishedPosts(ctx context.Context, limit int) ([]*data.Post, error) {
	return g.posts.GetPostsByStatus(ctx, data.StatusPublished, limit)
}

func (g *SQLGateway) SearchPosts(ctx context.Context, q string) ([]*data.Post, error) {
	return g.posts.SearchPosts(ctx, q)
}

func (g *SQLGateway) CreateCategory(ctx context.Context, category *data.Category) error {
	category.ID = uuid.NewString()
	if err := g.categories.CreateCategory(ctx, category); err != nil {
		return err
	}
	g.publish(ctx, realtime.Event{Table: realtime.TableCategories, Op: realtime.OpInsert, ID: category.ID})
	return nil
}

func (g *SQLGateway) DeleteCategory(ctx context.Context, id string) error {
	if err := g.categories.DeleteCategory(ctx, id); err != nil {
		return err
	}
	g.publish(ctx, realtime.Event{Table: realtime.TableCategories, Op: realtime.OpDelete, ID: id})
	return nil
}

func (g *SQLGateway) ListCategories(ctx context.Context) ([]*data.Category, error) {
	return g.categories.GetAllCategories(ctx)
}

func (g *SQLGateway) CreateTag(ctx context.Context, tag *data.Tag) error {
	tag.ID = uuid.NewString()
	if err := g.tags.CreateTag(ctx, tag); err != nil {
		return err
	}
	g.publish(ctx, realtime.Event{Table: realtime.TableTags, Op: realtime.OpInsert, ID: tag.ID})
	return nil
}

func (g *SQLGateway) FindTagByName(ctx context.Context, name string) (*data.Tag, error) {
	return g.tags.FindTagByName(ctx, name)
}

func (g *SQLGateway) DeleteTag(ctx context.Context, id string) error {
	if err := g.tags.DeleteTag(ctx, id); err != nil {
		return err
	}
	g.publish(ctx, realtime.Event{Table: realtime.TableTags, Op: realtime.OpDelete, ID: id})
	return nil
}

func (g *SQLGateway) ListTags(ctx context.Context) ([]*data.Tag, error) {
	return g.tags.GetAllTags(ctx)
}

// Upload stores an image and returns its derived size URLs.
func (g *SQLGateway) Upload(ctx context.Context, name string, payload []byte) (map[string]string, error) {
	if g.media == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	return g.media.UploadImage(ctx, name, payload)
}

func (g *SQLGateway) ListRevisions(ctx context.Context, postID string) ([]*data.PostRevision, error) {
	return g.revisions.GetRevisionsByPostID(ctx, postID)
}

func (g *SQLGateway) ListScheduled(ctx context.Context) ([]*data.ScheduledPost, error) {
	return g.scheduled.GetAll(ctx)
}

// Subscribe delegates to the realtime feed.
func (g *SQLGateway) Subscribe(ctx context.Context, table realtime.Table, fn func(realtime.Event)) (func(), error) {
	if g.feed == nil {
		return func() {}, nil
	}
	return g.feed.Subscribe(ctx, table, fn)
}

func realtimeUpdate(post *data.Post) realtime.Event {
	return realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, ID: post.ID, Status: post.Status}
}

var _ Gateway = (*SQLGateway)(nil)
