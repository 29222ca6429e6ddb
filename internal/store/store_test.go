//go:build unit

package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/realtime"
	"go-blog-cms/internal/workflow"
)

// mockGateway is a hand-rolled in-memory implementation of the Gateway
// interface. Setting errToReturn makes every mutating call fail.
type mockGateway struct {
	errToReturn error
	searchErr   error

	posts      []*data.Post
	categories []*data.Category
	tags       []*data.Tag

	createPostCalled int
	updatePostCalled int
	deletePostCalled int
	searchCalled     int
	lastUpdated      *data.Post
}

var _ gateway.Gateway = (*mockGateway)(nil)

func (m *mockGateway) CreatePost(ctx context.Context, post *data.Post) error {
	m.createPostCalled++
	if m.errToReturn != nil {
		return m.errToReturn
	}
	post.ID = "post-1"
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	cp := *post
	m.posts = append(m.posts, &cp)
	return nil
}

func (m *mockGateway) UpdatePost(ctx context.Context, post *data.Post) error {
	m.updatePostCalled++
	cp := *post
	m.lastUpdated = &cp
	return m.errToReturn
}

func (m *mockGateway) DeletePost(ctx context.Context, id string) error {
	m.deletePostCalled++
	return m.errToReturn
}

func (m *mockGateway) ListAllPosts(ctx context.Context) ([]*data.Post, error) {
	if m.errToReturn != nil {
		return nil, m.errToReturn
	}
	return m.posts, nil
}

func (m *mockGateway) ListPublishedPosts(ctx context.Context, limit int) ([]*data.Post, error) {
	if m.errToReturn != nil {
		return nil, m.errToReturn
	}
	var out []*data.Post
	for _, p := range m.posts {
		if p.Status == data.StatusPublished {
			out = append(out, p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockGateway) SearchPosts(ctx context.Context, q string) ([]*data.Post, error) {
	m.searchCalled++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []*data.Post
	for _, p := range m.posts {
		if strings.Contains(p.Title, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockGateway) CreateCategory(ctx context.Context, category *data.Category) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	category.ID = "cat-1"
	return nil
}

func (m *mockGateway) DeleteCategory(ctx context.Context, id string) error { return m.errToReturn }

func (m *mockGateway) ListCategories(ctx context.Context) ([]*data.Category, error) {
	return m.categories, m.errToReturn
}

func (m *mockGateway) CreateTag(ctx context.Context, tag *data.Tag) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	tag.ID = "tag-new"
	return nil
}

func (m *mockGateway) FindTagByName(ctx context.Context, name string) (*data.Tag, error) {
	for _, tg := range m.tags {
		if strings.EqualFold(tg.Name, name) {
			return tg, nil
		}
	}
	return nil, nil
}

func (m *mockGateway) DeleteTag(ctx context.Context, id string) error { return m.errToReturn }

func (m *mockGateway) ListTags(ctx context.Context) ([]*data.Tag, error) {
	return m.tags, m.errToReturn
}

func (m *mockGateway) Upload(ctx context.Context, name string, payload []byte) (map[string]string, error) {
	return nil, errors.New("not implemented in mock")
}

func (m *mockGateway) CreateRevision(ctx context.Context, postID string, kind data.RevisionKind, author string) (*data.PostRevision, error) {
	return nil, m.errToReturn
}

func (m *mockGateway) RestoreRevision(ctx context.Context, postID, revisionID, author string) (*data.Post, error) {
	return nil, m.errToReturn
}

func (m *mockGateway) PublishDueScheduledPosts(ctx context.Context) (int, error) {
	return 0, m.errToReturn
}

func (m *mockGateway) ListRevisions(ctx context.Context, postID string) ([]*data.PostRevision, error) {
	return nil, m.errToReturn
}

func (m *mockGateway) ListScheduled(ctx context.Context) ([]*data.ScheduledPost, error) {
	return nil, m.errToReturn
}

func (m *mockGateway) Subscribe(ctx context.Context, table realtime.Table, fn func(realtime.Event)) (func(), error) {
	return func() {}, nil
}

func TestStore_AddPost(t *testing.T) {
	t.Run("success assigns id and slug", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)

		post, err := s.AddPost(context.Background(), DraftFields{Title: "Hello World!!", Content: "<p>hi</p>", AuthorName: "alice"})
		if err != nil {
			t.Fatalf("AddPost failed: %v", err)
		}
		if post.ID == "" {
			t.Error("expected server-assigned id")
		}
		if post.Slug != "hello-world" {
			t.Errorf("expected slug 'hello-world', got %q", post.Slug)
		}
		if post.Status != data.StatusDraft {
			t.Errorf("expected new post to be a draft, got %s", post.Status)
		}
		if got, ok := s.GetPost(post.ID); !ok || got.Title != "Hello World!!" {
			t.Error("expected post to be held locally after create")
		}
	})

	t.Run("empty title is a validation error before any remote call", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)

		_, err := s.AddPost(context.Background(), DraftFields{Title: "   "})
		var verr *workflow.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if gw.createPostCalled != 0 {
			t.Error("validation failure must not reach the gateway")
		}
	})

	t.Run("remote failure leaves state unmodified", func(t *testing.T) {
		gw := &mockGateway{errToReturn: errors.New("boom")}
		s := New(gw, true, 0)

		if _, err := s.AddPost(context.Background(), DraftFields{Title: "X"}); err == nil {
			t.Fatal("expected error")
		}
		if len(s.Posts()) != 0 {
			t.Error("failed create must not insert locally")
		}
	})
}

func TestStore_UpdatePost(t *testing.T) {
	seed := func(gw *mockGateway, s *Store) data.Post {
		post, err := s.AddPost(context.Background(), DraftFields{Title: "Original Title", Content: "<p>body</p>"})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return post
	}

	t.Run("title change regenerates slug", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		post := seed(gw, s)

		title := "Brand New Title"
		updated, err := s.UpdatePost(context.Background(), post.ID, PostPatch{Title: &title})
		if err != nil {
			t.Fatalf("UpdatePost failed: %v", err)
		}
		if updated.Slug != "brand-new-title" {
			t.Errorf("expected regenerated slug, got %q", updated.Slug)
		}
		if !updated.UpdatedAt.After(post.UpdatedAt) && !updated.UpdatedAt.Equal(post.UpdatedAt) {
			t.Error("expected updatedAt to be bumped")
		}
	})

	t.Run("untouched title keeps slug", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		post := seed(gw, s)

		content := "<p>new body</p>"
		updated, err := s.UpdatePost(context.Background(), post.ID, PostPatch{Content: &content})
		if err != nil {
			t.Fatalf("UpdatePost failed: %v", err)
		}
		if updated.Slug != post.Slug {
			t.Errorf("slug changed on content-only update: %q -> %q", post.Slug, updated.Slug)
		}
	})

	t.Run("failed update leaves held post identical", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		post := seed(gw, s)
		before, _ := s.GetPost(post.ID)

		gw.errToReturn = errors.New("constraint violation")
		title := "Should Not Stick"
		if _, err := s.UpdatePost(context.Background(), post.ID, PostPatch{Title: &title}); err == nil {
			t.Fatal("expected error")
		}

		after, _ := s.GetPost(post.ID)
		if !reflect.DeepEqual(before, after) {
			t.Errorf("held post changed after failed update:\nbefore: %+v\nafter:  %+v", before, after)
		}
	})

	t.Run("unknown post is a validation error", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		title := "x"
		_, err := s.UpdatePost(context.Background(), "nope", PostPatch{Title: &title})
		var verr *workflow.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if gw.updatePostCalled != 0 {
			t.Error("unknown post must not reach the gateway")
		}
	})
}

func TestStore_Transition(t *testing.T) {
	newDraft := func(t *testing.T) (*mockGateway, *Store, data.Post) {
		t.Helper()
		gw := &mockGateway{}
		s := New(gw, true, 0)
		post, err := s.AddPost(context.Background(), DraftFields{Title: "Hello World!!"})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return gw, s, post
	}

	t.Run("scheduling one minute out fails with too-soon reason", func(t *testing.T) {
		_, s, post := newDraft(t)
		at := time.Now().Add(time.Minute)
		_, err := s.Transition(context.Background(), post.ID, data.StatusScheduled, &at)
		if err == nil || !strings.Contains(err.Error(), "too soon") {
			t.Fatalf("expected too-soon rejection, got %v", err)
		}
	})

	t.Run("scheduling one hour out succeeds and records the timestamp", func(t *testing.T) {
		_, s, post := newDraft(t)
		at := time.Now().Add(time.Hour)
		updated, err := s.Transition(context.Background(), post.ID, data.StatusScheduled, &at)
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if updated.Status != data.StatusScheduled {
			t.Errorf("expected scheduled status, got %s", updated.Status)
		}
		if updated.ScheduledAt == nil || !updated.ScheduledAt.Equal(at) {
			t.Errorf("expected scheduledAt %v, got %v", at, updated.ScheduledAt)
		}
	})

	t.Run("illegal transition never reaches the gateway", func(t *testing.T) {
		gw, s, post := newDraft(t)
		calls := gw.updatePostCalled
		if _, err := s.Transition(context.Background(), post.ID, data.StatusArchived, nil); err == nil {
			t.Fatal("expected draft -> archived to be rejected")
		}
		if gw.updatePostCalled != calls {
			t.Error("rejected transition must not reach the gateway")
		}
	})

	t.Run("publishing stamps publishedAt", func(t *testing.T) {
		_, s, post := newDraft(t)
		updated, err := s.Transition(context.Background(), post.ID, data.StatusPublished, nil)
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if updated.PublishedAt == nil {
			t.Error("expected publishedAt to be set on first publish")
		}
	})
}

func TestStore_AddTag_CaseInsensitiveReuse(t *testing.T) {
	t.Run("reuses tag held locally", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		s.tags = []*data.Tag{{ID: "tag-react", Name: "react"}}

		tag, err := s.AddTag(context.Background(), "React")
		if err != nil {
			t.Fatalf("AddTag failed: %v", err)
		}
		if tag.ID != "tag-react" {
			t.Errorf("expected existing tag id 'tag-react', got %q", tag.ID)
		}
		if len(s.Tags()) != 1 {
			t.Errorf("expected a single tag, got %d", len(s.Tags()))
		}
	})

	t.Run("reuses tag known only to the gateway", func(t *testing.T) {
		gw := &mockGateway{tags: []*data.Tag{{ID: "tag-go", Name: "Go"}}}
		s := New(gw, true, 0)

		tag, err := s.AddTag(context.Background(), "gO")
		if err != nil {
			t.Fatalf("AddTag failed: %v", err)
		}
		if tag.ID != "tag-go" {
			t.Errorf("expected existing tag id 'tag-go', got %q", tag.ID)
		}
	})

	t.Run("creates when no match exists", func(t *testing.T) {
		gw := &mockGateway{}
		s := New(gw, true, 0)
		tag, err := s.AddTag(context.Background(), "Fresh")
		if err != nil {
			t.Fatalf("AddTag failed: %v", err)
		}
		if tag.ID != "tag-new" {
			t.Errorf("expected newly created tag, got %q", tag.ID)
		}
	})
}

func TestStore_GetPost_AbsenceIsNotAnError(t *testing.T) {
	s := New(&mockGateway{}, true, 0)
	if _, ok := s.GetPost("missing"); ok {
		t.Error("expected absence for unknown id")
	}
	if _, ok := s.GetPostBySlug("missing"); ok {
		t.Error("expected absence for unknown slug")
	}
}

func TestStore_SearchPosts_FallsBackToLocalFilter(t *testing.T) {
	gw := &mockGateway{searchErr: errors.New("search unavailable")}
	s := New(gw, true, 0)
	s.posts = []*data.Post{
		{ID: "1", Title: "Go concurrency patterns", Content: "channels"},
		{ID: "2", Title: "Unrelated", Content: "nothing here"},
	}

	results, err := s.SearchPosts(context.Background(), "CONCURRENCY")
	if err != nil {
		t.Fatalf("SearchPosts failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1" {
		t.Errorf("expected local fallback to match post 1, got %+v", results)
	}
	if gw.searchCalled != 1 {
		t.Error("expected remote search to be attempted first")
	}
}

func TestStore_Refresh_Shapes(t *testing.T) {
	gw := &mockGateway{
		posts: []*data.Post{
			{ID: "1", Status: data.StatusPublished},
			{ID: "2", Status: data.StatusDraft},
		},
		categories: []*data.Category{{ID: "c1", Name: "News"}},
		tags:       []*data.Tag{{ID: "t1", Name: "go"}},
	}

	t.Run("privileged holds everything", func(t *testing.T) {
		s := New(gw, true, 10)
		if err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if len(s.Posts()) != 2 {
			t.Errorf("expected 2 posts, got %d", len(s.Posts()))
		}
		if len(s.Tags()) != 1 {
			t.Errorf("expected tags to be fetched for privileged session")
		}
	})

	t.Run("unprivileged holds only published posts", func(t *testing.T) {
		s := New(gw, false, 10)
		if err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		posts := s.Posts()
		if len(posts) != 1 || posts[0].Status != data.StatusPublished {
			t.Errorf("expected only the published post, got %+v", posts)
		}
		if len(s.Tags()) != 0 {
			t.Error("unprivileged refresh must not fetch tags")
		}
	})

	t.Run("failed refresh leaves held data in place", func(t *testing.T) {
		s := New(gw, true, 10)
		if err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		gw.errToReturn = errors.New("connection reset")
		if err := s.Refresh(context.Background()); err == nil {
			t.Fatal("expected refresh error")
		}
		if len(s.Posts()) != 2 {
			t.Error("failed refresh must not clear held posts")
		}
	})
}

func TestStore_ContentIsSanitized(t *testing.T) {
	gw := &mockGateway{}
	s := New(gw, true, 0)
	post, err := s.AddPost(context.Background(), DraftFields{
		Title:   "XSS",
		Content: `<p>fine</p><script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("AddPost failed: %v", err)
	}
	if strings.Contains(post.Content, "script") {
		t.Errorf("expected script tags to be stripped, got %q", post.Content)
	}
	if !strings.Contains(post.Content, "<p>fine</p>") {
		t.Errorf("expected benign markup to survive, got %q", post.Content)
	}
}
