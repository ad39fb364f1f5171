// Package timetablegrid assembles a day × period grid from a flat list of
// timetable entries.
//
// Entries are matched to the catalog by label, not by id: the catalog ids
// (code values) and the ids embedded in timetable rows come from two
// independently maintained sources. When a label does not resolve, the
// entry's own embedded id is tried. Every placement decision and every
// dropped duplicate is recorded in a Report so callers can log data drift.
//
// A Grid is immutable once built. Rebuild it whenever the entries or either
// catalog change.
package timetablegrid

import "strings"

// Item is one catalog row (a day or a period).
type Item struct {
	ID    string
	Label string
}

// Entry is one schedule row to place. DayID and PeriodID are the ids the row
// was stored with; they are used only when the labels do not resolve.
type Entry[T any] struct {
	DayLabel    string
	PeriodLabel string
	DayID       string
	PeriodID    string
	Payload     T
}

// Coord addresses a cell by catalog ids.
type Coord struct {
	DayID    string
	PeriodID string
}

// Resolution says how one axis of an entry was matched to the catalog.
type Resolution int

const (
	Unresolved Resolution = iota
	ByLabel
	ByEmbeddedID
)

func (r Resolution) String() string {
	switch r {
	case ByLabel:
		return "label"
	case ByEmbeddedID:
		return "embedded_id"
	default:
		return "unresolved"
	}
}

// Placement records the outcome for one input entry.
type Placement struct {
	Index  int // position in the input slice
	Coord  Coord
	Day    Resolution
	Period Resolution
	Placed bool
}

// Drop records an entry that lost its cell to an earlier entry.
type Drop struct {
	Coord   Coord
	Kept    int // input index of the entry occupying the cell
	Dropped int // input index of the discarded entry
}

// Report describes how entries were reconciled against the catalogs.
type Report struct {
	Placements []Placement
	Dropped    []Drop
}

// Unresolved returns the placements that could not be mapped onto the catalog.
func (r Report) Unresolved() []Placement {
	var out []Placement
	for _, p := range r.Placements {
		if p.Day == Unresolved || p.Period == Unresolved {
			out = append(out, p)
		}
	}
	return out
}

// Fallbacks returns the placements where at least one axis needed the embedded id.
func (r Report) Fallbacks() []Placement {
	var out []Placement
	for _, p := range r.Placements {
		if p.Day == ByEmbeddedID || p.Period == ByEmbeddedID {
			out = append(out, p)
		}
	}
	return out
}

// Clean reports whether every entry resolved by label and nothing was dropped.
func (r Report) Clean() bool {
	if len(r.Dropped) > 0 {
		return false
	}
	for _, p := range r.Placements {
		if p.Day != ByLabel || p.Period != ByLabel {
			return false
		}
	}
	return true
}

// Cell is one slot of the grid.
type Cell[T any] struct {
	Coord    Coord
	Day      Item
	Period   Item
	Entry    T
	Occupied bool
}

// Row is one period across every day, in catalog order.
type Row[T any] struct {
	Period Item
	Cells  []Cell[T]
}

// Grid is the assembled, total map over days × periods.
type Grid[T any] struct {
	days    []Item
	periods []Item
	cells   map[Coord]*T
}

// Normalize is the label key used for matching: trimmed and lowercased.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Build assembles the grid. The first entry seen for a cell wins; later ones
// are recorded in Report.Dropped. Entries that resolve to coordinates outside
// the catalogs are left out so the grid stays exactly len(days) × len(periods).
func Build[T any](days, periods []Item, entries []Entry[T]) (*Grid[T], Report) {
	dayByLabel, dayIDs := index(days)
	periodByLabel, periodIDs := index(periods)

	g := &Grid[T]{
		days:    days,
		periods: periods,
		cells:   make(map[Coord]*T, len(days)*len(periods)),
	}
	for _, d := range days {
		for _, p := range periods {
			c := Coord{DayID: d.ID, PeriodID: p.ID}
			if _, ok := g.cells[c]; !ok {
				g.cells[c] = nil
			}
		}
	}

	rep := Report{Placements: make([]Placement, 0, len(entries))}
	owner := make(map[Coord]int, len(entries))

	for i := range entries {
		e := &entries[i]
		dayID, dayRes := resolve(e.DayLabel, e.DayID, dayByLabel, dayIDs)
		periodID, periodRes := resolve(e.PeriodLabel, e.PeriodID, periodByLabel, periodIDs)

		pl := Placement{
			Index:  i,
			Coord:  Coord{DayID: dayID, PeriodID: periodID},
			Day:    dayRes,
			Period: periodRes,
		}
		if dayRes == Unresolved || periodRes == Unresolved {
			rep.Placements = append(rep.Placements, pl)
			continue
		}

		if kept, taken := owner[pl.Coord]; taken {
			rep.Dropped = append(rep.Dropped, Drop{Coord: pl.Coord, Kept: kept, Dropped: i})
			rep.Placements = append(rep.Placements, pl)
			continue
		}

		payload := e.Payload
		g.cells[pl.Coord] = &payload
		owner[pl.Coord] = i
		pl.Placed = true
		rep.Placements = append(rep.Placements, pl)
	}

	return g, rep
}

// index builds the normalized label → id map and the id set for a catalog.
// With duplicate labels the first id wins.
func index(items []Item) (map[string]string, map[string]struct{}) {
	byLabel := make(map[string]string, len(items))
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
		k := Normalize(it.Label)
		if k == "" {
			continue
		}
		if _, dup := byLabel[k]; !dup {
			byLabel[k] = it.ID
		}
	}
	return byLabel, ids
}

func resolve(label, embeddedID string, byLabel map[string]string, ids map[string]struct{}) (string, Resolution) {
	if id, ok := byLabel[Normalize(label)]; ok {
		return id, ByLabel
	}
	if embeddedID != "" {
		if _, ok := ids[embeddedID]; ok {
			return embeddedID, ByEmbeddedID
		}
	}
	return "", Unresolved
}

// Len is the number of cells, occupied or empty.
func (g *Grid[T]) Len() int { return len(g.cells) }

// Occupied is the number of cells holding an entry.
func (g *Grid[T]) Occupied() int {
	n := 0
	for _, v := range g.cells {
		if v != nil {
			n++
		}
	}
	return n
}

// Days returns the day axis in catalog order.
func (g *Grid[T]) Days() []Item { return g.days }

// Periods returns the period axis in catalog order.
func (g *Grid[T]) Periods() []Item { return g.periods }

// Has reports whether the coordinate belongs to the grid.
func (g *Grid[T]) Has(dayID, periodID string) bool {
	_, ok := g.cells[Coord{DayID: dayID, PeriodID: periodID}]
	return ok
}

// At returns the entry stored at the coordinate, if any.
func (g *Grid[T]) At(dayID, periodID string) (T, bool) {
	var zero T
	v, ok := g.cells[Coord{DayID: dayID, PeriodID: periodID}]
	if !ok || v == nil {
		return zero, false
	}
	return *v, true
}

// Day looks up a day by catalog id.
func (g *Grid[T]) Day(id string) (Item, bool) { return find(g.days, id) }

// Period looks up a period by catalog id.
func (g *Grid[T]) Period(id string) (Item, bool) { return find(g.periods, id) }

func find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Rows lays the grid out for rendering: one row per period, one cell per day.
func (g *Grid[T]) Rows() []Row[T] {
	rows := make([]Row[T], 0, len(g.periods))
	for _, p := range g.periods {
		row := Row[T]{Period: p, Cells: make([]Cell[T], 0, len(g.days))}
		for _, d := range g.days {
			c := Cell[T]{
				Coord:  Coord{DayID: d.ID, PeriodID: p.ID},
				Day:    d,
				Period: p,
			}
			if v := g.cells[c.Coord]; v != nil {
				c.Entry = *v
				c.Occupied = true
			}
			row.Cells = append(row.Cells, c)
		}
		rows = append(rows, row)
	}
	return rows
}
