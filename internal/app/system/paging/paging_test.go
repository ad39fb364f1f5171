package paging_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/system/paging"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type room struct {
	ID     primitive.ObjectID
	NameCI string
}

func rooms(n int) []room {
	out := make([]room, n)
	for i := range out {
		out[i] = room{ID: primitive.NewObjectID(), NameCI: string(rune('a' + i%26))}
	}
	return out
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		before   string
		after    string
		wantLen  int
		wantPrev bool
		wantNext bool
	}{
		{"first page, more follow", paging.PageSize + 1, "", "", paging.PageSize, false, true},
		{"first page, last one", 7, "", "", 7, false, false},
		{"forward from cursor", 3, "", "c", 3, true, false},
		{"backward, more before", paging.PageSize + 1, "c", "", paging.PageSize, true, true},
		{"backward to the start", 4, "c", "", 4, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := rooms(tt.rows)
			first, last := rows[0], rows[len(rows)-1]
			res := paging.TrimPage(&rows, tt.before, tt.after)

			if len(rows) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(rows), tt.wantLen)
			}
			if res.HasPrev != tt.wantPrev || res.HasNext != tt.wantNext {
				t.Errorf("prev/next = %v/%v, want %v/%v", res.HasPrev, res.HasNext, tt.wantPrev, tt.wantNext)
			}
			if tt.rows > paging.PageSize {
				// The look-ahead row is dropped from the far end of the fetch.
				if tt.before != "" && rows[0].ID == first.ID {
					t.Error("backward trim kept the look-ahead row")
				}
				if tt.before == "" && rows[len(rows)-1].ID == last.ID {
					t.Error("forward trim kept the look-ahead row")
				}
			}
		})
	}
}

func TestConfigureKeyset(t *testing.T) {
	id := primitive.NewObjectID()
	cur := wafflemongo.EncodeCursor("lab 2", id)

	cfg := paging.ConfigureKeyset("", "")
	if cfg.Direction != paging.Forward || cfg.SortOrder != 1 || cfg.Cursor != nil {
		t.Errorf("no cursor: %+v", cfg)
	}
	if cfg.KeysetWindow("name_ci") != nil || cfg.IDWindow() != nil {
		t.Error("windows without a cursor should be nil")
	}

	cfg = paging.ConfigureKeyset("", cur)
	if cfg.Direction != paging.Forward || cfg.Cursor == nil || cfg.Cursor.ID != id || cfg.Cursor.CI != "lab 2" {
		t.Errorf("after: %+v", cfg)
	}

	cfg = paging.ConfigureKeyset(cur, "")
	if cfg.Direction != paging.Backward || cfg.SortOrder != -1 || cfg.Cursor == nil {
		t.Errorf("before: %+v", cfg)
	}
	want := bson.M{"_id": bson.M{"$lt": id}}
	if got := cfg.IDWindow(); got["_id"].(bson.M)["$lt"] != want["_id"].(bson.M)["$lt"] {
		t.Errorf("IDWindow = %v, want %v", got, want)
	}

	if cfg := paging.ConfigureKeyset("", "%%%"); cfg.Cursor != nil {
		t.Error("garbage cursor should decode to nil")
	}
}

func TestApplyToFind(t *testing.T) {
	find := options.Find()
	paging.ConfigureKeyset("", "").ApplyToFind(find, "name_ci")

	if find.Limit == nil || *find.Limit != int64(paging.PageSize+1) {
		t.Errorf("limit = %v, want look-ahead of one", find.Limit)
	}
	sort, ok := find.Sort.(bson.D)
	if !ok || len(sort) != 2 || sort[0].Key != "name_ci" || sort[1].Key != "_id" {
		t.Errorf("sort = %v", find.Sort)
	}
}

func TestMerge(t *testing.T) {
	status := bson.M{"status": "active"}
	window := bson.M{"_id": bson.M{"$gt": primitive.NewObjectID()}}

	if got := paging.Merge(status, nil); len(got) != 1 || got["status"] != "active" {
		t.Errorf("nil window changed filter: %v", got)
	}
	if got := paging.Merge(bson.M{}, window); got["_id"] == nil {
		t.Errorf("empty filter should become the window: %v", got)
	}
	if got := paging.Merge(status, window); len(got["$and"].(bson.A)) != 2 {
		t.Errorf("expected $and of both clauses: %v", got)
	}
}

func TestBuildCursorsAndReverse(t *testing.T) {
	rows := rooms(3)
	paging.Reverse(rows)
	key := func(r room) string { return r.NameCI }
	id := func(r room) primitive.ObjectID { return r.ID }

	prev, next := paging.BuildCursors(rows, key, id)
	p, ok := wafflemongo.DecodeCursor(prev)
	if !ok || p.ID != rows[0].ID || p.CI != "c" {
		t.Errorf("prev cursor = %+v", p)
	}
	n, ok := wafflemongo.DecodeCursor(next)
	if !ok || n.ID != rows[2].ID || n.CI != "a" {
		t.Errorf("next cursor = %+v", n)
	}

	if prev, next := paging.BuildCursors([]room{}, key, id); prev != "" || next != "" {
		t.Error("empty page should have no cursors")
	}
}

func TestParseParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/rooms?after=abc&q=++Lab+", nil)
	p := paging.ParseParams(r)
	if p.After != "abc" || p.Before != "" || p.Query != "Lab" {
		t.Errorf("ParseParams = %+v", p)
	}
}
