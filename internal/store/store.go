// Package store holds the authoritative in-process view of posts,
// categories and tags for one session. All mutation flows through its
// operations: each one calls the gateway first and touches local state only
// on success, so a failed remote call leaves the collections exactly as
// they were. There is no retry logic here; a failed mutation is reported
// once and retried only by the caller.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/workflow"
)

// Store is the post aggregate state holder.
type Store struct {
	mu             sync.RWMutex
	gw             gateway.Gateway
	sanitizer      *bluemonday.Policy
	privileged     bool
	publicPageSize int

	posts      []*data.Post
	categories []*data.Category
	tags       []*data.Tag
}

// New creates a Store bound to a gateway. privileged selects the refresh
// shape: privileged sessions hold every post, unprivileged sessions hold
// only a bounded page of published posts.
func New(gw gateway.Gateway, privileged bool, publicPageSize int) *Store {
	return &Store{
		gw:             gw,
		sanitizer:      bluemonday.UGCPolicy(),
		privileged:     privileged,
		publicPageSize: publicPageSize,
	}
}

// Privileged reports the refresh shape this store was built with.
func (s *Store) Privileged() bool {
	return s.privileged
}

// DraftFields is the caller-supplied part of a new post. Identity,
// timestamps and slug are assigned during creation.
type DraftFields struct {
	Title          string
	Content        string
	Excerpt        string
	FeaturedImage  string
	CategoryID     string
	TagIDs         []string
	SEOTitle       string
	SEODescription string
	SEOKeywords    string
	AuthorName     string
}

// PostPatch is a partial update; nil fields are left untouched. Status is
// deliberately absent: status changes go through Transition.
type PostPatch struct {
	Title          *string
	Content        *string
	Excerpt        *string
	FeaturedImage  *string
	CategoryID     *string
	TagIDs         *[]string
	SEOTitle       *string
	SEODescription *string
	SEOKeywords    *string
}

// GetPost looks up a post by id in the held collection. Absence is an
// expected condition, reported through the bool, never as an error.
func (s *Store) GetPost(id string) (data.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return clonePost(p), true
		}
	}
	return data.Post{}, false
}

// GetPostBySlug looks up a post by slug in the held collection.
func (s *Store) GetPostBySlug(slug string) (data.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.Slug == slug {
			return clonePost(p), true
		}
	}
	return data.Post{}, false
}

// Posts returns a copy of the held post collection.
func (s *Store) Posts() []data.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]data.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	return out
}

// Categories returns a copy of the held category collection.
func (s *Store) Categories() []data.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]data.Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = *c
	}
	return out
}

// Tags returns a copy of the held tag collection.
func (s *Store) Tags() []data.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]data.Tag, len(s.tags))
	for i, tg := range s.tags {
		out[i] = *tg
	}
	return out
}

// AddPost creates a new post as a draft. On success the post, now carrying
// its assigned id, timestamps and derived slug, is prepended to the held
// collection and returned. On failure local state is unmodified.
func (s *Store) AddPost(ctx context.Context, fields DraftFields) (data.Post, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return data.Post{}, &workflow.ValidationError{Reason: "title must not be empty"}
	}

	post := &data.Post{
		Slug:           Slugify(fields.Title),
		Title:          fields.Title,
		Content:        s.sanitizer.Sanitize(fields.Content),
		Excerpt:        fields.Excerpt,
		FeaturedImage:  fields.FeaturedImage,
		CategoryID:     fields.CategoryID,
		TagIDs:         append([]string(nil), fields.TagIDs...),
		SEOTitle:       fields.SEOTitle,
		SEODescription: fields.SEODescription,
		SEOKeywords:    fields.SEOKeywords,
		Status:         data.StatusDraft,
		AuthorName:     fields.AuthorName,
	}
	if err := s.gw.CreatePost(ctx, post); err != nil {
		return data.Post{}, fmt.Errorf("failed to create post: %w", err)
	}

	s.mu.Lock()
	s.posts = append([]*data.Post{post}, s.posts...)
	s.mu.Unlock()
	return clonePost(post), nil
}

// UpdatePost applies a partial update. The patch is merged into a copy of
// the held post, sent to the gateway, and only merged back locally once the
// remote call succeeds. The local merge is authoritative for immediate
// reads and is not followed by a refetch; if the remote side applies
// server-computed defaults the held copy diverges until the next
// reconciliation. That gap is inherited behavior, kept deliberately.
func (s *Store) UpdatePost(ctx context.Context, id string, patch PostPatch) (data.Post, error) {
	s.mu.RLock()
	var current *data.Post
	for _, p := range s.posts {
		if p.ID == id {
			current = p
			break
		}
	}
	if current == nil {
		s.mu.RUnlock()
		return data.Post{}, &workflow.ValidationError{Reason: fmt.Sprintf("post %s not found", id)}
	}
	candidate := clonePost(current)
	s.mu.RUnlock()

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return data.Post{}, &workflow.ValidationError{Reason: "title must not be empty"}
		}
		if *patch.Title != candidate.Title {
			candidate.Title = *patch.Title
			candidate.Slug = Slugify(*patch.Title)
		}
	}
	if patch.Content != nil {
		candidate.Content = s.sanitizer.Sanitize(*patch.Content)
	}
	if patch.Excerpt != nil {
		candidate.Excerpt = *patch.Excerpt
	}
	if patch.FeaturedImage != nil {
		candidate.FeaturedImage = *patch.FeaturedImage
	}
	if patch.CategoryID != nil {
		candidate.CategoryID = *patch.CategoryID
	}
	if patch.TagIDs != nil {
		candidate.TagIDs = append([]string(nil), (*patch.TagIDs)...)
	}
	if patch.SEOTitle != nil {
		candidate.SEOTitle = *patch.SEOTitle
	}
	if patch.SEODescription != nil {
		candidate.SEODescription = *patch.SEODescription
	}
	if patch.SEOKeywords != nil {
		candidate.SEOKeywords = *patch.SEOKeywords
	}
	candidate.UpdatedAt = time.Now()

	// The gateway call runs outside the lock so overlapping updates to the
	// same post both reach the remote side; the held copy reflects
	// whichever call resolves last.
	if err := s.gw.UpdatePost(ctx, &candidate); err != nil {
		return data.Post{}, fmt.Errorf("failed to update post: %w", err)
	}

	s.replacePost(&candidate)
	return clonePost(&candidate), nil
}

// Transition moves a post to a new publication status after validating the
// move against the workflow table. A transition to scheduled requires a
// timestamp inside the allowed window and records it; publishing stamps
// PublishedAt on first publish.
func (s *Store) Transition(ctx context.Context, id string, target data.Status, scheduledAt *time.Time) (data.Post, error) {
	s.mu.RLock()
	var current *data.Post
	for _, p := range s.posts {
		if p.ID == id {
			current = p
			break
		}
	}
	if current == nil {
		s.mu.RUnlock()
		return data.Post{}, &workflow.ValidationError{Reason: fmt.Sprintf("post %s not found", id)}
	}
	candidate := clonePost(current)
	s.mu.RUnlock()

	if err := workflow.ValidateTransition(candidate.Status, target, scheduledAt, time.Now()); err != nil {
		return data.Post{}, err
	}

	candidate.Status = target
	switch target {
	case data.StatusScheduled:
		candidate.ScheduledAt = scheduledAt
	case data.StatusPublished:
		candidate.ScheduledAt = nil
		if candidate.PublishedAt == nil {
			now := time.Now()
			candidate.PublishedAt = &now
		}
	default:
		candidate.ScheduledAt = nil
	}
	candidate.UpdatedAt = time.Now()

	if err := s.gw.UpdatePost(ctx, &candidate); err != nil {
		return data.Post{}, fmt.Errorf("failed to update post status: %w", err)
	}

	s.replacePost(&candidate)
	return clonePost(&candidate), nil
}

// DeletePost removes a post. On failure the held collection is untouched.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := s.gw.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	s.mu.Lock()
	for i, p := range s.posts {
		if p.ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// AddCategory creates a category with a derived slug.
func (s *Store) AddCategory(ctx context.Context, name string) (data.Category, error) {
	if strings.TrimSpace(name) == "" {
		return data.Category{}, &workflow.ValidationError{Reason: "category name must not be empty"}
	}
	category := &data.Category{Name: name, Slug: Slugify(name)}
	if err := s.gw.CreateCategory(ctx, category); err != nil {
		return data.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	s.mu.Lock()
	s.categories = append(s.categories, category)
	s.mu.Unlock()
	return *category, nil
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := s.gw.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	s.mu.Lock()
	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// AddTag returns a tag with the given name, reusing any existing tag whose
// name matches case-insensitively. The held collection is checked first,
// then the gateway, and only then is a new tag created.
func (s *Store) AddTag(ctx context.Context, name string) (data.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return data.Tag{}, &workflow.ValidationError{Reason: "tag name must not be empty"}
	}

	s.mu.RLock()
	for _, tg := range s.tags {
		if strings.EqualFold(tg.Name, name) {
			existing := *tg
			s.mu.RUnlock()
			return existing, nil
		}
	}
	s.mu.RUnlock()

	existing, err := s.gw.FindTagByName(ctx, name)
	if err != nil {
		return data.Tag{}, fmt.Errorf("failed to look up tag: %w", err)
	}
	if existing != nil {
		s.mu.Lock()
		s.tags = append(s.tags, existing)
		s.mu.Unlock()
		return *existing, nil
	}

	tag := &data.Tag{Name: name}
	if err := s.gw.CreateTag(ctx, tag); err != nil {
		return data.Tag{}, fmt.Errorf("failed to create tag: %w", err)
	}
	s.mu.Lock()
	s.tags = append(s.tags, tag)
	s.mu.Unlock()
	return *tag, nil
}

// DeleteTag removes a tag.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	if err := s.gw.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	s.mu.Lock()
	for i, tg := range s.tags {
		if tg.ID == id {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// SearchPosts asks the gateway to search and falls back to a local
// substring filter over title and content when the remote search is
// unavailable. The result is a fresh set; held state is never mutated.
func (s *Store) SearchPosts(ctx context.Context, query string) ([]data.Post, error) {
	remote, err := s.gw.SearchPosts(ctx, query)
	if err == nil {
		out := make([]data.Post, len(remote))
		for i, p := range remote {
			out[i] = clonePost(p)
		}
		return out, nil
	}

	// Remote search unavailable: filter what we hold.
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []data.Post
	for _, p := range s.posts {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q) {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

// Refresh re-fetches the working set. Privileged sessions fetch every post
// plus categories and tags; unprivileged sessions fetch only a bounded page
// of published posts plus categories, keeping exposure and transfer down
// for public readers. On any fetch error the held collections are left as
// they were.
func (s *Store) Refresh(ctx context.Context) error {
	if s.privileged {
		posts, err := s.gw.ListAllPosts(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh posts: %w", err)
		}
		categories, err := s.gw.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh categories: %w", err)
		}
		tags, err := s.gw.ListTags(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh tags: %w", err)
		}
		s.mu.Lock()
		s.posts = posts
		s.categories = categories
		s.tags = tags
		s.mu.Unlock()
		return nil
	}

	posts, err := s.gw.ListPublishedPosts(ctx, s.publicPageSize)
	if err != nil {
		return fmt.Errorf("failed to refresh published posts: %w", err)
	}
	categories, err := s.gw.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh categories: %w", err)
	}
	s.mu.Lock()
	s.posts = posts
	s.categories = categories
	s.mu.Unlock()
	return nil
}

// replacePost swaps the held entry for the given post id.
func (s *Store) replacePost(post *data.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.posts {
		if p.ID == post.ID {
			s.posts[i] = post
			return
		}
	}
	// The post disappeared from the held set (e.g. a reconciliation ran
	// between the remote call and the merge); reinsert at the front.
	s.posts = append([]*data.Post{post}, s.posts...)
}

func clonePost(p *data.Post) data.Post {
	out := *p
	out.TagIDs = append([]string(nil), p.TagIDs...)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		out.ScheduledAt = &t
	}
	return out
}
