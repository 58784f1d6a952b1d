package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/repository"
)

func TestVideoList_ActiveAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "admin")

	createTestVideo(t, db, admin, "golang-basics", true)
	createTestVideo(t, db, admin, "golang-hidden", false)
	createTestVideo(t, db, admin, "python-intro", true)

	tests := []struct {
		name      string
		filter    repository.VideoFilter
		wantTotal int
	}{
		{"all active", repository.VideoFilter{ActiveOnly: true}, 2},
		{"everything", repository.VideoFilter{}, 3},
		{"query title", repository.VideoFilter{ActiveOnly: true, Query: "GOLANG"}, 1},
		{"query description", repository.VideoFilter{Query: "about python"}, 1},
		{"link only matches with SearchLink", repository.VideoFilter{Query: "watch?v=python"}, 0},
		{"link search", repository.VideoFilter{Query: "watch?v=python", SearchLink: true}, 1},
		{"like wildcards are literal", repository.VideoFilter{Query: "%"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos, total, err := db.Videos().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal || len(videos) != tt.wantTotal {
				t.Errorf("List() total = %d len = %d, want %d", total, len(videos), tt.wantTotal)
			}
		})
	}
}

func TestVideoList_DateRangeAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "admin")

	for _, title := range []string{"a", "b", "c"} {
		createTestVideo(t, db, admin, title, true)
	}

	future := time.Now().Add(time.Hour)
	_, total, err := db.Videos().List(ctx, repository.VideoFilter{Created: repository.DateRange{From: &future}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 0 {
		t.Errorf("future From total = %d, want 0", total)
	}

	page, total, err := db.Videos().List(ctx, repository.VideoFilter{ListOptions: repository.Page(2, 2)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Errorf("page 2 = %d items of %d, want 1 of 3", len(page), total)
	}
}

func TestVideoBulk(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "admin")
	a := createTestVideo(t, db, admin, "a", true)
	b := createTestVideo(t, db, admin, "b", true)

	n, err := db.Videos().SetActive(ctx, []string{a.ID, b.ID, "missing"}, false)
	if err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if n != 2 {
		t.Errorf("SetActive() = %d, want 2", n)
	}

	n, err = db.Videos().DeleteMany(ctx, []string{a.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteMany() = %d, %v", n, err)
	}
	if _, err := db.Videos().GetByID(ctx, a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestVideoUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createTestUser(t, db, "admin")
	v := createTestVideo(t, db, admin, "a", true)

	v.Title = "renamed"
	v.AdminNotes = "check audio"
	if err := db.Videos().Update(ctx, v); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := db.Videos().GetByID(ctx, v.ID)
	if got.Title != "renamed" || got.AdminNotes != "check audio" {
		t.Errorf("Update() not persisted: %+v", got)
	}
}
