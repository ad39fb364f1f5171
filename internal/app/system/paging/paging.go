// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of rows in a paged list.
const PageSize = 50

// LimitPlusOne is PageSize+1: one extra row tells whether a next page exists.
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// Params are the paging inputs of a list request.
type Params struct {
	Before string
	After  string
	Query  string
}

// ParseParams reads ?before=, ?after= and ?q= from the request.
func ParseParams(r *http.Request) Params {
	return Params{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
		Query:  strings.TrimSpace(query.Search(r, "q")),
	}
}

// Result reports whether neighbouring pages exist.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims a PageSize+1 fetch down to one page.
// Paging backwards drops the extra row from the front, forwards from the back.
func TrimPage[T any](rows *[]T, before, after string) Result {
	var res Result
	if before != "" {
		if len(*rows) > PageSize {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		res.HasNext = true
	}
	res.HasPrev = after != ""
	return res
}

// Direction is the paging direction.
type Direction int

const (
	Forward  Direction = iota // ascending, cursor uses $gt
	Backward                  // descending, cursor uses $lt
)

// KeysetConfig is the decoded cursor and sort direction for one request.
type KeysetConfig struct {
	Direction Direction
	SortOrder int
	Cursor    *wafflemongo.Cursor
}

// ConfigureKeyset decodes before/after into a KeysetConfig.
func ConfigureKeyset(before, after string) KeysetConfig {
	cfg := KeysetConfig{Direction: Forward, SortOrder: 1}
	raw := after
	if before != "" {
		cfg.Direction = Backward
		cfg.SortOrder = -1
		raw = before
	}
	if raw != "" {
		if c, ok := wafflemongo.DecodeCursor(raw); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// ApplyToFind sets sort (field, _id) and the look-ahead limit.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(LimitPlusOne())
}

// ApplyIDToFind sorts by _id alone. ObjectIDs grow with insertion time, so
// this pages in creation order.
func (cfg KeysetConfig) ApplyIDToFind(find *options.FindOptions) {
	find.SetSort(bson.D{{Key: "_id", Value: cfg.SortOrder}}).SetLimit(LimitPlusOne())
}

// KeysetWindow is the filter clause for a (field, _id) cursor, or nil.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	return wafflemongo.KeysetWindow(sortField, cfg.op(), cfg.Cursor.CI, cfg.Cursor.ID)
}

// IDWindow is the filter clause for an _id-only cursor, or nil.
func (cfg KeysetConfig) IDWindow() bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	return bson.M{"_id": bson.M{"$" + cfg.op(): cfg.Cursor.ID}}
}

func (cfg KeysetConfig) op() string {
	if cfg.Direction == Backward {
		return "lt"
	}
	return "gt"
}

// Reverse reverses rows in place; used after a backward fetch.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors encodes the first and last rows as prev/next cursors.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first, last := rows[0], rows[len(rows)-1]
	return wafflemongo.EncodeCursor(keyFn(first), idFn(first)), wafflemongo.EncodeCursor(keyFn(last), idFn(last))
}

// Merge ANDs the keyset clause into filter. A nil window leaves filter as is.
func Merge(filter bson.M, window bson.M) bson.M {
	if window == nil {
		return filter
	}
	if len(filter) == 0 {
		return window
	}
	return bson.M{"$and": bson.A{filter, window}}
}
