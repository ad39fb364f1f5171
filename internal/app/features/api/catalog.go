// internal/app/features/api/catalog.go
package api

import (
	"context"
	"fmt"
	"strings"

	roomstore "github.com/dalemusser/schedulehub/internal/app/store/rooms"
	sectionstore "github.com/dalemusser/schedulehub/internal/app/store/sections"
	studentstore "github.com/dalemusser/schedulehub/internal/app/store/students"
	subjectstore "github.com/dalemusser/schedulehub/internal/app/store/subjects"
	teacherstore "github.com/dalemusser/schedulehub/internal/app/store/teachers"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type roomInput struct {
	Code     string `json:"code" validate:"notblank,max=32" label:"Room code"`
	Name     string `json:"name" validate:"notblank,max=120" label:"Room name"`
	Building string `json:"building" validate:"max=120" label:"Building"`
	Capacity int    `json:"capacity" validate:"gte=0,lte=10000" label:"Capacity"`
	Status   string `json:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
}

type teacherInput struct {
	Code       string `json:"code" validate:"notblank,max=32" label:"Teacher code"`
	FullName   string `json:"full_name" validate:"notblank,max=200" label:"Full name"`
	Email      string `json:"email" validate:"omitempty,email" label:"Email"`
	Department string `json:"department" validate:"max=120" label:"Department"`
	Status     string `json:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
}

type studentInput struct {
	StudentCode    string `json:"student_code" validate:"notblank,max=32" label:"Student code"`
	FullName       string `json:"full_name" validate:"notblank,max=200" label:"Full name"`
	Email          string `json:"email" validate:"omitempty,email" label:"Email"`
	MajorSectionID string `json:"major_section_id" validate:"omitempty,objectid" label:"Major section"`
	Status         string `json:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
}

type subjectInput struct {
	Code           string   `json:"code" validate:"notblank,max=32" label:"Subject code"`
	Name           string   `json:"name" validate:"notblank,max=200" label:"Subject name"`
	Credits        int      `json:"credits" validate:"gte=0,lte=60" label:"Credits"`
	TeacherIDs     []string `json:"teacher_ids" validate:"omitempty,dive,objectid" label:"Teachers"`
	SubjectTypeIDs []string `json:"subject_type_ids" validate:"omitempty,dive,objectid" label:"Subject types"`
	Status         string   `json:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
}

type sectionInput struct {
	Code         string `json:"code" validate:"notblank,max=32" label:"Section code"`
	Name         string `json:"name" validate:"notblank,max=120" label:"Section name"`
	Major        string `json:"major" validate:"max=120" label:"Major"`
	AcademicYear string `json:"academic_year" validate:"max=20" label:"Academic year"`
	Status       string `json:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
}

// oids parses hex ids that have already passed the objectid rule.
func oids(hexes []string) []primitive.ObjectID {
	if hexes == nil {
		return nil
	}
	out := make([]primitive.ObjectID, 0, len(hexes))
	seen := make(map[primitive.ObjectID]bool, len(hexes))
	for _, h := range hexes {
		oid, err := primitive.ObjectIDFromHex(h)
		if err != nil || seen[oid] {
			continue
		}
		seen[oid] = true
		out = append(out, oid)
	}
	return out
}

// entryRefs counts timetable entries whose field points at id.
func (h *Handler) entryRefs(ctx context.Context, field string, id primitive.ObjectID, noun string) (string, error) {
	n, err := h.Entries.Count(ctx, bson.M{field: id})
	if err != nil {
		return "", err
	}
	if n > 0 {
		return fmt.Sprintf("This %s is used by %d timetable entries.", noun, n), nil
	}
	return "", nil
}

// renameIn returns a resource hook that rewrites field's embedded name in
// every timetable entry pointing at the record.
func renameIn[T any](h *Handler, field string, ref func(T) models.Ref) func(context.Context, T) error {
	return func(ctx context.Context, v T) error {
		rf := ref(v)
		n, err := h.Entries.RenameRef(ctx, field, rf.ID, rf.Name)
		if err != nil {
			return err
		}
		if n > 0 {
			h.Log.Info("timetable entries renamed",
				zap.String("field", field),
				zap.String("id", rf.ID.Hex()),
				zap.Int64("entries", n))
		}
		return nil
	}
}

func (h *Handler) rooms() *resource[models.Room, roomInput] {
	return &resource[models.Room, roomInput]{
		collection: "rooms",
		sortField:  "name_ci",
		store:      h.Rooms,
		key:        func(v models.Room) string { return v.NameCI },
		id:         func(v models.Room) primitive.ObjectID { return v.ID },
		dup:        roomstore.ErrDuplicateRoom,
		toModel: func(_ context.Context, in roomInput) (models.Room, error) {
			return models.Room{
				Code:     in.Code,
				Name:     in.Name,
				Building: strings.TrimSpace(in.Building),
				Capacity: in.Capacity,
				Status:   in.Status,
			}, nil
		},
		inUse: func(ctx context.Context, id primitive.ObjectID) (string, error) {
			return h.entryRefs(ctx, "room.id", id, "room")
		},
		renamed: renameIn(h, "room", func(v models.Room) models.Ref { return models.Ref{ID: v.ID, Name: v.Name} }),
		changed: h.TT.Invalidate,
		h:       h,
	}
}

func (h *Handler) teachers() *resource[models.Teacher, teacherInput] {
	return &resource[models.Teacher, teacherInput]{
		collection: "teachers",
		sortField:  "full_name_ci",
		store:      h.Teachers,
		key:        func(v models.Teacher) string { return v.FullNameCI },
		id:         func(v models.Teacher) primitive.ObjectID { return v.ID },
		dup:        teacherstore.ErrDuplicateTeacher,
		toModel: func(_ context.Context, in teacherInput) (models.Teacher, error) {
			return models.Teacher{
				Code:       in.Code,
				FullName:   in.FullName,
				Email:      strings.ToLower(strings.TrimSpace(in.Email)),
				Department: strings.TrimSpace(in.Department),
				Status:     in.Status,
			}, nil
		},
		inUse: func(ctx context.Context, id primitive.ObjectID) (string, error) {
			return h.entryRefs(ctx, "teacher.id", id, "teacher")
		},
		renamed: renameIn(h, "teacher", func(v models.Teacher) models.Ref { return models.Ref{ID: v.ID, Name: v.FullName} }),
		afterDelete: func(ctx context.Context, id primitive.ObjectID) error {
			_, err := h.Subjects.RemoveTeacher(ctx, id)
			return err
		},
		changed: h.TT.Invalidate,
		h:       h,
	}
}

func (h *Handler) students() *resource[models.Student, studentInput] {
	return &resource[models.Student, studentInput]{
		collection: "students",
		sortField:  "full_name_ci",
		store:      h.Students,
		key:        func(v models.Student) string { return v.FullNameCI },
		id:         func(v models.Student) primitive.ObjectID { return v.ID },
		dup:        studentstore.ErrDuplicateStudent,
		toModel: func(ctx context.Context, in studentInput) (models.Student, error) {
			st := models.Student{
				StudentCode: in.StudentCode,
				FullName:    in.FullName,
				Email:       in.Email,
				Status:      in.Status,
			}
			if in.MajorSectionID != "" {
				oid, _ := primitive.ObjectIDFromHex(in.MajorSectionID)
				if _, err := h.Sections.GetByID(ctx, oid); err != nil {
					if isNoDocs(err) {
						return st, timetable.NewUserError("The selected major section does not exist.")
					}
					return st, err
				}
				st.MajorSectionID = &oid
			}
			return st, nil
		},
		h: h,
	}
}

func (h *Handler) subjects() *resource[models.Subject, subjectInput] {
	return &resource[models.Subject, subjectInput]{
		collection: "subjects",
		sortField:  "name_ci",
		store:      h.Subjects,
		key:        func(v models.Subject) string { return v.NameCI },
		id:         func(v models.Subject) primitive.ObjectID { return v.ID },
		dup:        subjectstore.ErrDuplicateSubject,
		toModel: func(ctx context.Context, in subjectInput) (models.Subject, error) {
			sub := models.Subject{
				Code:           in.Code,
				Name:           in.Name,
				Credits:        in.Credits,
				TeacherIDs:     oids(in.TeacherIDs),
				SubjectTypeIDs: oids(in.SubjectTypeIDs),
				Status:         in.Status,
			}
			if len(sub.TeacherIDs) > 0 {
				ts, err := h.Teachers.GetByIDs(ctx, sub.TeacherIDs)
				if err != nil {
					return sub, err
				}
				if len(ts) != len(sub.TeacherIDs) {
					return sub, timetable.NewUserError("One or more selected teachers do not exist.")
				}
			}
			if len(sub.SubjectTypeIDs) > 0 {
				cvs, err := h.Codes.GetByIDs(ctx, sub.SubjectTypeIDs)
				if err != nil {
					return sub, err
				}
				n := 0
				for _, cv := range cvs {
					if cv.Category == models.CategorySubjectType {
						n++
					}
				}
				if n != len(sub.SubjectTypeIDs) {
					return sub, timetable.NewUserError("One or more selected subject types do not exist.")
				}
			}
			return sub, nil
		},
		inUse: func(ctx context.Context, id primitive.ObjectID) (string, error) {
			return h.entryRefs(ctx, "subject.id", id, "subject")
		},
		renamed: renameIn(h, "subject", func(v models.Subject) models.Ref { return models.Ref{ID: v.ID, Name: v.Name} }),
		changed: h.TT.Invalidate,
		h:       h,
	}
}

func (h *Handler) sections() *resource[models.MajorSection, sectionInput] {
	return &resource[models.MajorSection, sectionInput]{
		collection: "major_sections",
		sortField:  "name_ci",
		store:      h.Sections,
		key:        func(v models.MajorSection) string { return v.NameCI },
		id:         func(v models.MajorSection) primitive.ObjectID { return v.ID },
		dup:        sectionstore.ErrDuplicateSection,
		toModel: func(_ context.Context, in sectionInput) (models.MajorSection, error) {
			return models.MajorSection{
				Code:         in.Code,
				Name:         in.Name,
				Major:        strings.TrimSpace(in.Major),
				AcademicYear: strings.TrimSpace(in.AcademicYear),
				Status:       in.Status,
			}, nil
		},
		renamed: renameIn(h, "section", func(v models.MajorSection) models.Ref { return models.Ref{ID: v.ID, Name: v.Name} }),
		// A deleted section takes its timetable with it and releases its students.
		afterDelete: func(ctx context.Context, id primitive.ObjectID) error {
			if _, err := h.Entries.DeleteBySection(ctx, id); err != nil {
				return fmt.Errorf("delete section entries: %w", err)
			}
			n, err := h.Students.CountBySection(ctx, id)
			if err != nil || n == 0 {
				return err
			}
			sts, err := h.Students.Find(ctx, bson.M{"major_section_id": id})
			if err != nil {
				return err
			}
			for _, st := range sts {
				if err := h.Students.Unassign(ctx, st.ID); err != nil {
					return fmt.Errorf("unassign student %s: %w", st.ID.Hex(), err)
				}
			}
			return nil
		},
		changed: h.TT.Invalidate,
		h:       h,
	}
}
