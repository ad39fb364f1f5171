package timetable

import (
	"context"
	"errors"
	"fmt"
	"sort"

	timetablestore "github.com/dalemusser/schedulehub/internal/app/store/timetables"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/querycache"
	"github.com/dalemusser/schedulehub/internal/app/system/status"
	"github.com/dalemusser/schedulehub/internal/app/system/timetablegrid"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrSectionNotFound and ErrTeacherNotFound are returned by the grid readers.
var (
	ErrSectionNotFound = errors.New("major section not found")
	ErrTeacherNotFound = errors.New("teacher not found")
)

// Grid is a timetable grid over timetable entries.
type Grid = timetablegrid.Grid[models.TimetableEntry]

// Catalog holds the grid axes and the subject-type list.
type Catalog struct {
	Days         []models.CodeValue
	Periods      []models.CodeValue
	SubjectTypes []models.CodeValue
}

func items(cvs []models.CodeValue) []timetablegrid.Item {
	out := make([]timetablegrid.Item, 0, len(cvs))
	for _, cv := range cvs {
		out = append(out, timetablegrid.Item{ID: cv.ID.Hex(), Label: cv.Label})
	}
	return out
}

// DayID maps an entry's embedded day to the catalog id: by label first,
// then by the embedded id. Empty when neither matches.
func (c Catalog) DayID(ref models.Ref) string { return catalogID(c.Days, ref) }

// PeriodID is DayID for periods.
func (c Catalog) PeriodID(ref models.Ref) string { return catalogID(c.Periods, ref) }

func catalogID(cvs []models.CodeValue, ref models.Ref) string {
	want := timetablegrid.Normalize(ref.Name)
	for _, cv := range cvs {
		if timetablegrid.Normalize(cv.Label) == want {
			return cv.ID.Hex()
		}
	}
	for _, cv := range cvs {
		if cv.ID == ref.ID {
			return cv.ID.Hex()
		}
	}
	return ""
}

// View is one assembled timetable.
type View struct {
	Grid   *Grid
	Report timetablegrid.Report
	// Combined maps an entry id to the other sections in its combined group.
	Combined map[string][]models.Ref
}

// CellFor returns what the cell form needs to open the cell at (dayID, periodID).
func (v *View) CellFor(dayID, periodID string) cellform.Cell {
	c := cellform.Cell{DayID: dayID, PeriodID: periodID}
	e, ok := v.Grid.At(dayID, periodID)
	if !ok {
		return c
	}
	c.EntryID = e.ID.Hex()
	cur := cellform.Values{
		DayID:     dayID,
		PeriodID:  periodID,
		SubjectID: e.Subject.ID.Hex(),
		RoomID:    e.Room.ID.Hex(),
		TeacherID: e.Teacher.ID.Hex(),
	}
	if e.SubjectType != nil {
		cur.SubjectTypeID = e.SubjectType.ID.Hex()
	}
	c.Current = &cur
	return c
}

// Catalog loads the days, periods and subject types in sort order.
func (s *Service) Catalog(ctx context.Context) (Catalog, error) {
	return querycache.Fetch(ctx, s.cache, cellform.ScopeTimetable, "catalog", func(ctx context.Context) (Catalog, error) {
		var c Catalog
		var err error
		if c.Days, err = s.codes.ListByCategory(ctx, models.CategoryDay); err != nil {
			return c, fmt.Errorf("load days: %w", err)
		}
		if c.Periods, err = s.codes.ListByCategory(ctx, models.CategoryPeriod); err != nil {
			return c, fmt.Errorf("load periods: %w", err)
		}
		if c.SubjectTypes, err = s.codes.ListByCategory(ctx, models.CategorySubjectType); err != nil {
			return c, fmt.Errorf("load subject types: %w", err)
		}
		return c, nil
	})
}

func (s *Service) build(cat Catalog, entries []models.TimetableEntry, logField zap.Field) (*Grid, timetablegrid.Report) {
	in := make([]timetablegrid.Entry[models.TimetableEntry], 0, len(entries))
	for _, e := range entries {
		in = append(in, timetablegrid.Entry[models.TimetableEntry]{
			DayLabel:    e.Day.Name,
			PeriodLabel: e.Period.Name,
			DayID:       e.Day.ID.Hex(),
			PeriodID:    e.Period.ID.Hex(),
			Payload:     e,
		})
	}
	g, rep := timetablegrid.Build(items(cat.Days), items(cat.Periods), in)

	for _, d := range rep.Dropped {
		s.log.Warn("duplicate timetable entry dropped from grid",
			logField,
			zap.String("day_id", d.Coord.DayID),
			zap.String("period_id", d.Coord.PeriodID),
			zap.String("kept", entries[d.Kept].ID.Hex()),
			zap.String("dropped", entries[d.Dropped].ID.Hex()))
	}
	for _, p := range rep.Unresolved() {
		e := entries[p.Index]
		s.log.Warn("timetable entry does not match the day/period catalog",
			logField,
			zap.String("entry_id", e.ID.Hex()),
			zap.String("day", e.Day.Name),
			zap.String("period", e.Period.Name))
	}
	if n := len(rep.Fallbacks()); n > 0 {
		s.log.Debug("timetable entries placed by embedded id", logField, zap.Int("count", n))
	}
	return g, rep
}

// combined lists, per entry, the other sections sharing its combined group.
func (s *Service) combined(ctx context.Context, entries []models.TimetableEntry) (map[string][]models.Ref, error) {
	out := map[string][]models.Ref{}
	groups := map[string][]models.Ref{}
	for _, e := range entries {
		if e.CombinedGroup == "" {
			continue
		}
		refs, ok := groups[e.CombinedGroup]
		if !ok {
			members, err := s.entries.ListByCombinedGroup(ctx, e.CombinedGroup)
			if err != nil {
				return nil, fmt.Errorf("load combined group: %w", err)
			}
			for _, m := range members {
				refs = append(refs, m.Section)
			}
			groups[e.CombinedGroup] = refs
		}
		var others []models.Ref
		for _, r := range refs {
			if r.ID != e.SectionID {
				others = append(others, r)
			}
		}
		sort.Slice(others, func(i, j int) bool { return others[i].Name < others[j].Name })
		out[e.ID.Hex()] = others
	}
	return out, nil
}

// SectionView is the timetable of one major section.
type SectionView struct {
	Section models.MajorSection
	View
}

// SectionGrid assembles a section's timetable.
func (s *Service) SectionGrid(ctx context.Context, sectionID primitive.ObjectID) (*SectionView, error) {
	return querycache.Fetch(ctx, s.cache, cellform.ScopeTimetable, "section:"+sectionID.Hex(), func(ctx context.Context) (*SectionView, error) {
		sec, err := s.sections.GetByID(ctx, sectionID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSectionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load section: %w", err)
		}
		cat, err := s.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := s.entries.ListBySection(ctx, sectionID)
		if err != nil {
			return nil, fmt.Errorf("load entries: %w", err)
		}
		comb, err := s.combined(ctx, entries)
		if err != nil {
			return nil, err
		}
		g, rep := s.build(cat, entries, zap.String("section_id", sectionID.Hex()))
		return &SectionView{Section: sec, View: View{Grid: g, Report: rep, Combined: comb}}, nil
	})
}

// TeacherView is one teacher's week across all sections.
type TeacherView struct {
	Teacher models.Teacher
	View
}

// TeacherGrid assembles a teacher's timetable. A combined class appears once,
// with the other sections listed in Combined.
func (s *Service) TeacherGrid(ctx context.Context, teacherID primitive.ObjectID) (*TeacherView, error) {
	return querycache.Fetch(ctx, s.cache, cellform.ScopeTimetable, "teacher:"+teacherID.Hex(), func(ctx context.Context) (*TeacherView, error) {
		t, err := s.teachers.GetByID(ctx, teacherID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTeacherNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load teacher: %w", err)
		}
		cat, err := s.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := s.entries.ListByTeacher(ctx, teacherID)
		if err != nil {
			return nil, fmt.Errorf("load entries: %w", err)
		}

		// One representative per combined group.
		seen := map[string]bool{}
		reps := entries[:0:0]
		for _, e := range entries {
			if e.CombinedGroup != "" {
				if seen[e.CombinedGroup] {
					continue
				}
				seen[e.CombinedGroup] = true
			}
			reps = append(reps, e)
		}
		comb, err := s.combined(ctx, reps)
		if err != nil {
			return nil, err
		}
		g, rep := s.build(cat, reps, zap.String("teacher_id", teacherID.Hex()))
		return &TeacherView{Teacher: t, View: View{Grid: g, Report: rep, Combined: comb}}, nil
	})
}

// SectionSummary is one row of the timetable list.
type SectionSummary struct {
	Section models.MajorSection
	Entries int64
}

// Sections lists active major sections with their entry counts.
func (s *Service) Sections(ctx context.Context) ([]SectionSummary, error) {
	return querycache.Fetch(ctx, s.cache, cellform.ScopeTimetables, "sections", func(ctx context.Context) ([]SectionSummary, error) {
		secs, err := s.sections.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("load sections: %w", err)
		}
		counts, err := s.entries.CountBySection(ctx)
		if err != nil {
			return nil, fmt.Errorf("count entries: %w", err)
		}
		out := make([]SectionSummary, 0, len(secs))
		for _, sec := range secs {
			out = append(out, SectionSummary{Section: sec, Entries: counts[sec.ID]})
		}
		return out, nil
	})
}

// Options are the choices offered on the cell form.
type Options struct {
	Catalog
	Subjects []models.Subject
	Rooms    []models.Room
	Teachers []models.Teacher
}

// FormOptions loads every active subject, room and teacher plus the catalog.
func (s *Service) FormOptions(ctx context.Context) (Options, error) {
	return querycache.Fetch(ctx, s.cache, cellform.ScopeTimetable, "options", func(ctx context.Context) (Options, error) {
		var o Options
		var err error
		if o.Catalog, err = s.Catalog(ctx); err != nil {
			return o, err
		}
		if o.Subjects, err = s.subjects.ListActive(ctx); err != nil {
			return o, fmt.Errorf("load subjects: %w", err)
		}
		active := bson.M{"status": status.Active}
		if o.Rooms, err = s.rooms.Find(ctx, active, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})); err != nil {
			return o, fmt.Errorf("load rooms: %w", err)
		}
		if o.Teachers, err = s.teachers.Find(ctx, active, options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})); err != nil {
			return o, fmt.Errorf("load teachers: %w", err)
		}
		return o, nil
	})
}

// ScopeLookup builds the subject cascade lookup from o.
func (o Options) ScopeLookup() cellform.ScopeLookup {
	byID := make(map[string]cellform.Scope, len(o.Subjects))
	for _, sub := range o.Subjects {
		sc := cellform.Scope{}
		for _, id := range sub.TeacherIDs {
			sc.TeacherIDs = append(sc.TeacherIDs, id.Hex())
		}
		for _, id := range sub.SubjectTypeIDs {
			sc.SubjectTypeIDs = append(sc.SubjectTypeIDs, id.Hex())
		}
		byID[sub.ID.Hex()] = sc
	}
	return func(subjectID string) (cellform.Scope, bool) {
		sc, ok := byID[subjectID]
		return sc, ok
	}
}

// TeachersFor returns the teachers offered for subjectID: its scoped
// teachers, or every teacher when the subject has none listed.
func (o Options) TeachersFor(subjectID string) []models.Teacher {
	sub, ok := o.subject(subjectID)
	if !ok || len(sub.TeacherIDs) == 0 {
		return o.Teachers
	}
	var out []models.Teacher
	for _, t := range o.Teachers {
		if sub.HasTeacher(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// SubjectTypesFor returns the subject types offered for subjectID.
func (o Options) SubjectTypesFor(subjectID string) []models.CodeValue {
	sub, ok := o.subject(subjectID)
	if !ok || len(sub.SubjectTypeIDs) == 0 {
		return o.SubjectTypes
	}
	var out []models.CodeValue
	for _, cv := range o.SubjectTypes {
		if sub.HasSubjectType(cv.ID) {
			out = append(out, cv)
		}
	}
	return out
}

func (o Options) subject(id string) (models.Subject, bool) {
	for _, sub := range o.Subjects {
		if sub.ID.Hex() == id {
			return sub, true
		}
	}
	return models.Subject{}, false
}

// CombineCandidate is a section the combine form can offer.
type CombineCandidate struct {
	Section  models.MajorSection
	Combined bool   // already in the entry's group
	Busy     string // subject already in the target cell, if any
}

// CombineCandidates lists every other active section with its state at the
// entry's day and period.
func (s *Service) CombineCandidates(ctx context.Context, entryID primitive.ObjectID) (models.TimetableEntry, []CombineCandidate, error) {
	e, err := s.load(ctx, entryID)
	if err != nil {
		return e, nil, err
	}
	secs, err := s.sections.ListActive(ctx)
	if err != nil {
		return e, nil, fmt.Errorf("load sections: %w", err)
	}
	atSlot, err := s.entries.FindAtSlot(ctx, timetablestore.SlotOf(e))
	if err != nil {
		return e, nil, fmt.Errorf("load slot: %w", err)
	}
	bySection := map[primitive.ObjectID]models.TimetableEntry{}
	for _, x := range atSlot {
		if _, ok := bySection[x.SectionID]; !ok {
			bySection[x.SectionID] = x
		}
	}
	var out []CombineCandidate
	for _, sec := range secs {
		if sec.ID == e.SectionID {
			continue
		}
		c := CombineCandidate{Section: sec}
		if x, ok := bySection[sec.ID]; ok {
			if e.CombinedGroup != "" && x.CombinedGroup == e.CombinedGroup {
				c.Combined = true
			} else {
				c.Busy = x.Subject.Name
			}
		}
		out = append(out, c)
	}
	return e, out, nil
}
