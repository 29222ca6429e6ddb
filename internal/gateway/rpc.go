package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-blog-cms/internal/data"
)

// snapshot captures a post's editable fields as a revision record.
func snapshot(post *data.Post, kind data.RevisionKind, author string) *data.PostRevision {
	return &data.PostRevision{
		ID:             uuid.NewString(),
		PostID:         post.ID,
		Kind:           kind,
		Title:          post.Title,
		Content:        post.Content,
		Excerpt:        post.Excerpt,
		SEOTitle:       post.SEOTitle,
		SEODescription: post.SEODescription,
		SEOKeywords:    post.SEOKeywords,
		AuthorName:     author,
		CreatedAt:      time.Now(),
	}
}

// CreateRevision snapshots the post's current editable fields.
func (g *SQLGateway) CreateRevision(ctx context.Context, postID string, kind data.RevisionKind, author string) (*data.PostRevision, error) {
	post, err := g.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	rev := snapshot(post, kind, author)
	if err := g.revisions.CreateRevision(ctx, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

// RestoreRevision applies a stored snapshot back onto the post. The current
// state is snapshotted first so a restore is itself reversible.
func (g *SQLGateway) RestoreRevision(ctx context.Context, postID, revisionID, author string) (*data.Post, error) {
	rev, err := g.revisions.GetRevisionByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.PostID != postID {
		return nil, fmt.Errorf("revision %s does not belong to post %s", revisionID, postID)
	}
	post, err := g.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	safety := snapshot(post, data.RevisionManual, author)
	if err := g.revisions.CreateRevision(ctx, safety); err != nil {
		return nil, err
	}

	post.Title = rev.Title
	post.Content = rev.Content
	post.Excerpt = rev.Excerpt
	post.SEOTitle = rev.SEOTitle
	post.SEODescription = rev.SEODescription
	post.SEOKeywords = rev.SEOKeywords
	post.UpdatedAt = time.Now()
	if err := g.posts.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	g.publish(ctx, realtimeUpdate(post))
	return post, nil
}

// PublishDueScheduledPosts flips every due scheduled post to published and
// records each attempt in the projection. It returns the number published.
// Failures on one post do not stop the run.
func (g *SQLGateway) PublishDueScheduledPosts(ctx context.Context) (int, error) {
	due, err := g.scheduled.GetDuePending(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	published := 0
	for _, row := range due {
		post, err := g.posts.GetPostByID(ctx, row.PostID)
		if err != nil {
			if markErr := g.scheduled.MarkAttempt(ctx, row.PostID, data.ScheduleFailed, err.Error()); markErr != nil {
				g.log.Error(markErr, "failed to record publish attempt")
			}
			continue
		}
		if post.Status != data.StatusScheduled {
			// Row is stale: the post left scheduled status another way.
			if err := g.scheduled.Remove(ctx, row.PostID); err != nil {
				g.log.Error(err, "failed to drop stale scheduled row")
			}
			continue
		}

		now := time.Now()
		post.Status = data.StatusPublished
		post.PublishedAt = &now
		post.ScheduledAt = nil
		post.UpdatedAt = now
		if err := g.posts.UpdatePost(ctx, post); err != nil {
			if markErr := g.scheduled.MarkAttempt(ctx, row.PostID, data.ScheduleFailed, err.Error()); markErr != nil {
				g.log.Error(markErr, "failed to record publish attempt")
			}
			continue
		}
		if err := g.scheduled.MarkAttempt(ctx, row.PostID, data.SchedulePublished, ""); err != nil {
			g.log.Error(err, "failed to record publish attempt")
		}
		g.publish(ctx, realtimeUpdate(post))
		published++
	}
	return published, nil
}
