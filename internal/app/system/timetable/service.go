// Package timetable turns cell-form selections into timetable entries and
// serves the grids built from them.
package timetable

import (
	"context"
	"errors"
	"fmt"

	codevaluestore "github.com/dalemusser/schedulehub/internal/app/store/codevalues"
	roomstore "github.com/dalemusser/schedulehub/internal/app/store/rooms"
	sectionstore "github.com/dalemusser/schedulehub/internal/app/store/sections"
	subjectstore "github.com/dalemusser/schedulehub/internal/app/store/subjects"
	teacherstore "github.com/dalemusser/schedulehub/internal/app/store/teachers"
	timetablestore "github.com/dalemusser/schedulehub/internal/app/store/timetables"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/querycache"
	"github.com/dalemusser/schedulehub/internal/app/system/txn"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Service owns timetable writes and cached timetable reads.
type Service struct {
	entries  *timetablestore.Store
	codes    *codevaluestore.Store
	subjects *subjectstore.Store
	rooms    *roomstore.Store
	teachers *teacherstore.Store
	sections *sectionstore.Store

	client *mongo.Client // nil disables transactions
	cache  *querycache.Cache
	log    *zap.Logger
}

// New wires a service over db. client enables multi-document transactions
// for combine and grouped updates.
func New(db *mongo.Database, client *mongo.Client, cache *querycache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = querycache.New(0, logger)
	}
	return &Service{
		entries:  timetablestore.New(db),
		codes:    codevaluestore.New(db),
		subjects: subjectstore.New(db),
		rooms:    roomstore.New(db),
		teachers: teacherstore.New(db),
		sections: sectionstore.New(db),
		client:   client,
		cache:    cache,
		log:      logger,
	}
}

// Invalidate drops every cached timetable read.
func (s *Service) Invalidate() {
	s.cache.Invalidate(cellform.ScopeTimetable, cellform.ScopeTimetables)
}

// Cache exposes the query cache the service reads through.
func (s *Service) Cache() *querycache.Cache { return s.cache }

// resolved is a fully looked-up set of cell values.
type resolved struct {
	day, period, subject, room, teacher models.Ref
	subjectType                         *models.Ref
}

func parseID(field, hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, userErrorf("Please choose a valid %s.", field)
	}
	return oid, nil
}

func (s *Service) codeRef(ctx context.Context, field, category, hex string) (models.Ref, error) {
	oid, err := parseID(field, hex)
	if err != nil {
		return models.Ref{}, err
	}
	cv, err := s.codes.GetByID(ctx, oid)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && cv.Category != category) {
		return models.Ref{}, userErrorf("The selected %s no longer exists.", field)
	}
	if err != nil {
		return models.Ref{}, fmt.Errorf("load %s: %w", field, err)
	}
	return models.Ref{ID: cv.ID, Name: cv.Label}, nil
}

func (s *Service) resolve(ctx context.Context, v cellform.Values) (resolved, error) {
	var r resolved
	var err error

	if r.day, err = s.codeRef(ctx, "day", models.CategoryDay, v.DayID); err != nil {
		return r, err
	}
	if r.period, err = s.codeRef(ctx, "period", models.CategoryPeriod, v.PeriodID); err != nil {
		return r, err
	}

	subID, err := parseID("subject", v.SubjectID)
	if err != nil {
		return r, err
	}
	sub, err := s.subjects.GetByID(ctx, subID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r, userErrorf("The selected subject no longer exists.")
	}
	if err != nil {
		return r, fmt.Errorf("load subject: %w", err)
	}
	r.subject = models.Ref{ID: sub.ID, Name: sub.Name}

	roomID, err := parseID("room", v.RoomID)
	if err != nil {
		return r, err
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r, userErrorf("The selected room no longer exists.")
	}
	if err != nil {
		return r, fmt.Errorf("load room: %w", err)
	}
	r.room = models.Ref{ID: room.ID, Name: room.Name}

	teacherID, err := parseID("teacher", v.TeacherID)
	if err != nil {
		return r, err
	}
	if len(sub.TeacherIDs) > 0 && !sub.HasTeacher(teacherID) {
		return r, userErrorf("That teacher does not teach %s.", sub.Name)
	}
	t, err := s.teachers.GetByID(ctx, teacherID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r, userErrorf("The selected teacher no longer exists.")
	}
	if err != nil {
		return r, fmt.Errorf("load teacher: %w", err)
	}
	r.teacher = models.Ref{ID: t.ID, Name: t.FullName}

	if v.SubjectTypeID != "" {
		typeRef, err := s.codeRef(ctx, "subject type", models.CategorySubjectType, v.SubjectTypeID)
		if err != nil {
			return r, err
		}
		if len(sub.SubjectTypeIDs) > 0 && !sub.HasSubjectType(typeRef.ID) {
			return r, userErrorf("%s is not offered as %s.", sub.Name, typeRef.Name)
		}
		r.subjectType = &typeRef
	}
	return r, nil
}

// members are the entries moving together in one write: a single entry, or
// every entry of its combined group.
type members struct {
	ids   map[primitive.ObjectID]struct{}
	group string
}

func (m members) has(id primitive.ObjectID) bool {
	_, ok := m.ids[id]
	return ok
}

func single(id primitive.ObjectID) members {
	return members{ids: map[primitive.ObjectID]struct{}{id: {}}}
}

// checkSlot rejects room and teacher double-bookings at r's day and period.
// Entries in self, or in self's combined group, never conflict.
func (s *Service) checkSlot(ctx context.Context, r resolved, self members) error {
	atSlot, err := s.entries.FindAtSlot(ctx, r.slot())
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}
	for _, e := range atSlot {
		if self.has(e.ID) || (self.group != "" && e.CombinedGroup == self.group) {
			continue
		}
		if e.Room.ID == r.room.ID {
			return userErrorf("%s is already booked on %s, %s by %s.", r.room.Name, r.day.Name, r.period.Name, e.Section.Name)
		}
		if e.Teacher.ID == r.teacher.ID {
			return userErrorf("%s is already teaching on %s, %s (%s).", r.teacher.Name, r.day.Name, r.period.Name, e.Section.Name)
		}
	}
	return nil
}

// checkCell rejects a second entry in one section's cell.
func (s *Service) checkCell(ctx context.Context, section models.Ref, r resolved, self members) error {
	inCell, err := s.entries.FindInSectionSlot(ctx, section.ID, r.slot())
	if err != nil {
		return fmt.Errorf("load cell: %w", err)
	}
	for _, e := range inCell {
		if !self.has(e.ID) {
			return userErrorf("%s already has a class on %s, %s.", section.Name, r.day.Name, r.period.Name)
		}
	}
	return nil
}

func (r resolved) slot() timetablestore.Slot {
	return timetablestore.Slot{Day: r.day, Period: r.period}
}

func (r resolved) apply(e *models.TimetableEntry) {
	e.Day = r.day
	e.Period = r.period
	e.Subject = r.subject
	e.SubjectType = r.subjectType
	e.Room = r.room
	e.Teacher = r.teacher
}

// Create places a new entry in sectionID's cell.
func (s *Service) Create(ctx context.Context, sectionID primitive.ObjectID, v cellform.Values) (models.TimetableEntry, error) {
	sec, err := s.sections.GetByID(ctx, sectionID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.TimetableEntry{}, userErrorf("The section no longer exists.")
	}
	if err != nil {
		return models.TimetableEntry{}, fmt.Errorf("load section: %w", err)
	}
	r, err := s.resolve(ctx, v)
	if err != nil {
		return models.TimetableEntry{}, err
	}
	section := models.Ref{ID: sec.ID, Name: sec.Name}
	none := members{}
	if err := s.checkCell(ctx, section, r, none); err != nil {
		return models.TimetableEntry{}, err
	}
	if err := s.checkSlot(ctx, r, none); err != nil {
		return models.TimetableEntry{}, err
	}

	e := models.TimetableEntry{SectionID: sec.ID, Section: section}
	r.apply(&e)
	created, err := s.entries.Create(ctx, e)
	if err != nil {
		return models.TimetableEntry{}, fmt.Errorf("create entry: %w", err)
	}
	s.Invalidate()
	s.log.Info("timetable entry created",
		zap.String("entry_id", created.ID.Hex()),
		zap.String("section_id", sec.ID.Hex()),
		zap.String("day", r.day.Name),
		zap.String("period", r.period.Name))
	return created, nil
}

// Entry returns one timetable entry, or ErrEntryNotFound.
func (s *Service) Entry(ctx context.Context, id primitive.ObjectID) (models.TimetableEntry, error) {
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (models.TimetableEntry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return e, ErrEntryNotFound
	}
	if err != nil {
		return e, fmt.Errorf("load entry: %w", err)
	}
	return e, nil
}

// group returns e alone, or e with every entry of its combined group.
func (s *Service) group(ctx context.Context, e models.TimetableEntry) ([]models.TimetableEntry, members, error) {
	if e.CombinedGroup == "" {
		return []models.TimetableEntry{e}, single(e.ID), nil
	}
	all, err := s.entries.ListByCombinedGroup(ctx, e.CombinedGroup)
	if err != nil {
		return nil, members{}, fmt.Errorf("load combined group: %w", err)
	}
	m := members{ids: make(map[primitive.ObjectID]struct{}, len(all)), group: e.CombinedGroup}
	for _, x := range all {
		m.ids[x.ID] = struct{}{}
	}
	if !m.has(e.ID) {
		all = append(all, e)
		m.ids[e.ID] = struct{}{}
	}
	return all, m, nil
}

// Update rewrites an entry. A combined entry moves with its whole group.
func (s *Service) Update(ctx context.Context, entryID primitive.ObjectID, v cellform.Values) (models.TimetableEntry, error) {
	e, err := s.load(ctx, entryID)
	if err != nil {
		return e, err
	}
	r, err := s.resolve(ctx, v)
	if err != nil {
		return e, err
	}
	all, self, err := s.group(ctx, e)
	if err != nil {
		return e, err
	}

	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, r, self); err != nil {
			return err
		}
		for _, m := range all {
			if err := s.checkCell(ctx, m.Section, r, self); err != nil {
				return err
			}
		}
		for i := range all {
			r.apply(&all[i])
			if err := s.entries.Update(ctx, all[i].ID, all[i]); err != nil {
				return fmt.Errorf("update entry %s: %w", all[i].ID.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return e, err
	}

	s.Invalidate()
	s.log.Info("timetable entry updated",
		zap.String("entry_id", e.ID.Hex()),
		zap.Int("group_size", len(all)))
	r.apply(&e)
	return e, nil
}

// Delete removes one entry. A combined group left with a single entry is dissolved.
func (s *Service) Delete(ctx context.Context, entryID primitive.ObjectID) (models.TimetableEntry, error) {
	e, err := s.load(ctx, entryID)
	if err != nil {
		return e, err
	}
	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if _, err := s.entries.Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		return s.dissolveIfAlone(ctx, e.CombinedGroup)
	})
	if err != nil {
		return e, err
	}
	s.Invalidate()
	s.log.Info("timetable entry deleted", zap.String("entry_id", e.ID.Hex()))
	return e, nil
}

func (s *Service) dissolveIfAlone(ctx context.Context, group string) error {
	if group == "" {
		return nil
	}
	rest, err := s.entries.ListByCombinedGroup(ctx, group)
	if err != nil {
		return fmt.Errorf("load combined group: %w", err)
	}
	if len(rest) == 1 {
		if err := s.entries.ClearCombinedGroup(ctx, rest[0].ID); err != nil {
			return fmt.Errorf("dissolve combined group: %w", err)
		}
	}
	return nil
}

// CombineResult reports what Combine wrote.
type CombineResult struct {
	Group   string
	Created []models.TimetableEntry
	Skipped []primitive.ObjectID // sections already in the group
}

// Combine copies the entry into each target section's cell at the same day
// and period and tags all copies with one combined group.
func (s *Service) Combine(ctx context.Context, entryID primitive.ObjectID, sectionIDs []primitive.ObjectID) (CombineResult, error) {
	var res CombineResult
	src, err := s.load(ctx, entryID)
	if err != nil {
		return res, err
	}

	targets := make([]primitive.ObjectID, 0, len(sectionIDs))
	seen := map[primitive.ObjectID]bool{src.SectionID: true}
	for _, id := range sectionIDs {
		if !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return res, userErrorf("Please choose at least one other section.")
	}
	secs, err := s.sections.GetByIDs(ctx, targets)
	if err != nil {
		return res, fmt.Errorf("load sections: %w", err)
	}
	if len(secs) != len(targets) {
		return res, userErrorf("One of the selected sections no longer exists.")
	}

	res.Group = src.CombinedGroup
	if res.Group == "" {
		res.Group = uuid.NewString()
	}

	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		res.Created = res.Created[:0]
		res.Skipped = res.Skipped[:0]

		// Check every target before the first write.
		free := make([]models.MajorSection, 0, len(secs))
		for _, sec := range secs {
			inCell, err := s.entries.FindInSectionSlot(ctx, sec.ID, timetablestore.SlotOf(src))
			if err != nil {
				return fmt.Errorf("load cell: %w", err)
			}
			if len(inCell) == 0 {
				free = append(free, sec)
				continue
			}
			if inCell[0].CombinedGroup != "" && inCell[0].CombinedGroup == res.Group {
				res.Skipped = append(res.Skipped, sec.ID)
				continue
			}
			return userErrorf("%s already has a class on %s, %s.", sec.Name, src.Day.Name, src.Period.Name)
		}

		for _, sec := range free {
			cp := src
			cp.SectionID = sec.ID
			cp.Section = models.Ref{ID: sec.ID, Name: sec.Name}
			cp.CombinedGroup = res.Group
			created, err := s.entries.Create(ctx, cp)
			if err != nil {
				return fmt.Errorf("create combined entry: %w", err)
			}
			res.Created = append(res.Created, created)
		}
		if src.CombinedGroup == "" {
			if _, err := s.entries.SetCombinedGroup(ctx, []primitive.ObjectID{src.ID}, res.Group); err != nil {
				return fmt.Errorf("tag source entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return CombineResult{}, err
	}

	s.Invalidate()
	s.log.Info("class combined",
		zap.String("entry_id", src.ID.Hex()),
		zap.String("group", res.Group),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Split detaches an entry from its combined group. The entry stays in its cell.
func (s *Service) Split(ctx context.Context, entryID primitive.ObjectID) (models.TimetableEntry, error) {
	e, err := s.load(ctx, entryID)
	if err != nil {
		return e, err
	}
	if e.CombinedGroup == "" {
		return e, userErrorf("This class is not combined with another section.")
	}
	group := e.CombinedGroup
	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if err := s.entries.ClearCombinedGroup(ctx, e.ID); err != nil {
			return fmt.Errorf("split entry: %w", err)
		}
		return s.dissolveIfAlone(ctx, group)
	})
	if err != nil {
		return e, err
	}
	e.CombinedGroup = ""
	s.Invalidate()
	s.log.Info("class split", zap.String("entry_id", e.ID.Hex()), zap.String("group", group))
	return e, nil
}

// SectionBackend adapts the service to one section's cell form.
type SectionBackend struct {
	svc       *Service
	sectionID primitive.ObjectID
}

var _ cellform.Backend = SectionBackend{}

// ForSection returns the cell-form backend for sectionID.
func (s *Service) ForSection(sectionID primitive.ObjectID) SectionBackend {
	return SectionBackend{svc: s, sectionID: sectionID}
}

func (b SectionBackend) CreateEntry(ctx context.Context, v cellform.Values) (string, error) {
	e, err := b.svc.Create(ctx, b.sectionID, v)
	if err != nil {
		return "", err
	}
	return e.ID.Hex(), nil
}

func (b SectionBackend) UpdateEntry(ctx context.Context, entryID string, v cellform.Values) error {
	oid, err := primitive.ObjectIDFromHex(entryID)
	if err != nil {
		return ErrEntryNotFound
	}
	_, err = b.svc.Update(ctx, oid, v)
	return err
}
