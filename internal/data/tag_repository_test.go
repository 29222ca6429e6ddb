//go:build integration

package data

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func setupTagTest(t *testing.T) (*TagRepositoryDB, func()) {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}

	schema := `
	CREATE TABLE tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	CREATE TABLE post_tags (
		post_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (post_id, tag_id)
	);`
	db.MustExec(schema)

	repo := NewTagRepository(db)
	teardown := func() {
		db.Close()
	}
	return repo, teardown
}

func TestTagRepository_FindByNameIsCaseInsensitive(t *testing.T) {
	repo, teardown := setupTagTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.CreateTag(ctx, &Tag{ID: "t1", Name: "react"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	for _, name := range []string{"react", "React", "REACT"} {
		tag, err := repo.FindTagByName(ctx, name)
		if err != nil {
			t.Fatalf("FindTagByName(%q): %v", name, err)
		}
		if tag == nil {
			t.Fatalf("FindTagByName(%q) = nil, want the existing tag", name)
		}
		if tag.ID != "t1" {
			t.Errorf("FindTagByName(%q).ID = %q, want t1", name, tag.ID)
		}
	}
}

func TestTagRepository_FindMissingIsNotAnError(t *testing.T) {
	repo, teardown := setupTagTest(t)
	defer teardown()

	tag, err := repo.FindTagByName(context.Background(), "absent")
	if err != nil {
		t.Fatalf("FindTagByName: %v", err)
	}
	if tag != nil {
		t.Fatalf("FindTagByName = %v, want nil for a miss", tag)
	}
}

func TestTagRepository_DeleteRemovesLinks(t *testing.T) {
	repo, teardown := setupTagTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.CreateTag(ctx, &Tag{ID: "t1", Name: "go"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	db := repo.db.(*sqlx.DB)
	db.MustExec(`INSERT INTO post_tags (post_id, tag_id) VALUES ('p1', 't1')`)

	if err := repo.DeleteTag(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}

	var links int
	if err := db.Get(&links, `SELECT COUNT(*) FROM post_tags WHERE tag_id = 't1'`); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Errorf("links after delete = %d, want 0", links)
	}

	if err := repo.DeleteTag(ctx, "t1"); err == nil {
		t.Fatal("expected an error deleting a missing tag")
	}
}
