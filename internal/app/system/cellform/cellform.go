// Package cellform is the edit form behind a single timetable grid cell.
//
// A Form moves through Closed → Viewing|Creating → Submitting → Closed on
// success, or → Editing on failure. The form is a plain value with no I/O of
// its own; the create/update call and the cache invalidation are delegated to
// a Backend and an Invalidator.
package cellform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State is the form's lifecycle position.
type State int

const (
	Closed State = iota
	Viewing
	Creating
	Submitting
	Editing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Viewing:
		return "viewing"
	case Creating:
		return "creating"
	case Submitting:
		return "submitting"
	case Editing:
		return "editing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Open reports whether the form is showing (every state except Closed).
func (s State) Open() bool { return s != Closed }

// Query scopes invalidated after a successful write.
const (
	ScopeTimetable  = "timetable"
	ScopeTimetables = "timetables"
)

// GenericFailure is shown when the backend error carries no message.
const GenericFailure = "Could not save the timetable entry. Please try again."

var (
	ErrNotClosed    = errors.New("cellform: form is already open")
	ErrNotOpen      = errors.New("cellform: form is not open")
	ErrNotEditable  = errors.New("cellform: form is not accepting input")
	ErrFieldLocked  = errors.New("cellform: day and period are fixed by the cell")
	ErrInFlight     = errors.New("cellform: submit already in progress")
	ErrNoSubmission = errors.New("cellform: no submit in progress")
)

// Values are the selections on the form. Ids are opaque strings.
type Values struct {
	DayID         string
	PeriodID      string
	SubjectID     string
	SubjectTypeID string
	RoomID        string
	TeacherID     string
}

// Cell is what the grid hands to Open: the coordinates and, when the
// cell is occupied, the entry's id and current values.
type Cell struct {
	DayID    string
	PeriodID string
	EntryID  string
	Current  *Values
}

// Scope lists the teachers and subject types valid for one subject.
type Scope struct {
	TeacherIDs     []string
	SubjectTypeIDs []string
}

func (s Scope) allowsTeacher(id string) bool { return contains(s.TeacherIDs, id) }
func (s Scope) allowsType(id string) bool { return contains(s.SubjectTypeIDs, id) }

// ScopeLookup returns the scope of a subject; ok=false for an unknown subject.
type ScopeLookup func(subjectID string) (Scope, bool)

// Backend performs the write a submit resolves to.
type Backend interface {
	CreateEntry(ctx context.Context, v Values) (string, error)
	UpdateEntry(ctx context.Context, entryID string, v Values) error
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(scopes ...string)
}

// MessageError is implemented by errors whose message is safe to show the user.
type MessageError interface {
	error
	UserMessage() string
}

// Form is one cell's edit form.
type Form struct {
	state   State
	cell    Cell
	values  Values
	scope   Scope
	scoped  bool
	lookup  ScopeLookup
	message string
	missing []string
}

// New returns a closed form. lookup may be nil, in which case the subject
// cascade clears teacher and subject type on every subject change.
func New(lookup ScopeLookup) *Form {
	return &Form{lookup: lookup}
}

func (f *Form) State() State { return f.state }
func (f *Form) Values() Values { return f.values }
func (f *Form) EntryID() string { return f.cell.EntryID }
func (f *Form) Message() string { return f.message }
func (f *Form) Missing() []string { return append([]string(nil), f.missing...) }
func (f *Form) IsUpdate() bool { return f.cell.EntryID != "" }
func (f *Form) Scope() (Scope, bool) { return f.scope, f.scoped }

// DayPeriodLocked reports whether day and period are fixed by the grid cell.
func (f *Form) DayPeriodLocked() bool {
	return f.state.Open() && f.cell.DayID != "" && f.cell.PeriodID != ""
}

// Open shows the form for a cell: Viewing if the cell holds an entry,
// Creating otherwise.
func (f *Form) Open(c Cell) error {
	if f.state != Closed {
		return ErrNotClosed
	}
	f.cell = c
	f.message = ""
	f.missing = nil
	f.values = Values{}
	if c.Current != nil {
		f.values = *c.Current
	}
	f.values.DayID = c.DayID
	f.values.PeriodID = c.PeriodID
	f.loadScope()

	if c.EntryID != "" {
		f.state = Viewing
	} else {
		f.state = Creating
	}
	return nil
}

// Restore reapplies previously posted selections onto an opened form.
// Day and period are taken from the cell, never from v. Teacher and subject
// type that are outside the subject's scope are cleared.
func (f *Form) Restore(v Values) error {
	if !f.editable() {
		return ErrNotEditable
	}
	v.DayID = f.values.DayID
	v.PeriodID = f.values.PeriodID
	f.values = v
	f.loadScope()
	f.pruneToScope()
	return nil
}

// SelectSubject changes the subject. A different subject resets the
// teacher and subject-type selections.
func (f *Form) SelectSubject(id string) error {
	if !f.editable() {
		return ErrNotEditable
	}
	if id == f.values.SubjectID {
		return nil
	}
	f.values.SubjectID = id
	f.values.TeacherID = ""
	f.values.SubjectTypeID = ""
	f.loadScope()
	return nil
}

// SelectTeacher sets the teacher. An id outside the subject's scope is refused.
func (f *Form) SelectTeacher(id string) error {
	if !f.editable() {
		return ErrNotEditable
	}
	if id != "" && f.scoped && !f.scope.allowsTeacher(id) {
		return fmt.Errorf("cellform: teacher %q is not assigned to the subject", id)
	}
	f.values.TeacherID = id
	return nil
}

// SelectSubjectType sets the subject type. An id outside the subject's scope is refused.
func (f *Form) SelectSubjectType(id string) error {
	if !f.editable() {
		return ErrNotEditable
	}
	if id != "" && f.scoped && !f.scope.allowsType(id) {
		return fmt.Errorf("cellform: subject type %q is not offered for the subject", id)
	}
	f.values.SubjectTypeID = id
	return nil
}

// SelectRoom sets the room.
func (f *Form) SelectRoom(id string) error {
	if !f.editable() {
		return ErrNotEditable
	}
	f.values.RoomID = id
	return nil
}

// SetDayPeriod changes the coordinates. Only possible when the form was
// opened without a cell.
func (f *Form) SetDayPeriod(dayID, periodID string) error {
	if !f.editable() {
		return ErrNotEditable
	}
	if f.DayPeriodLocked() {
		return ErrFieldLocked
	}
	f.values.DayID = dayID
	f.values.PeriodID = periodID
	return nil
}

// Close discards the form from any state.
func (f *Form) Close() {
	*f = Form{lookup: f.lookup}
}

// Begin moves to Submitting if every required field is set. With missing
// fields the form goes to Editing with a message and Begin returns false.
func (f *Form) Begin() (bool, error) {
	switch f.state {
	case Closed:
		return false, ErrNotOpen
	case Submitting:
		return false, ErrInFlight
	}
	f.missing = f.missingFields()
	if len(f.missing) > 0 {
		f.state = Editing
		f.message = "Please choose " + joinFields(f.missing) + "."
		return false, nil
	}
	f.state = Submitting
	f.message = ""
	return true, nil
}

// Succeed closes the form after a successful write.
func (f *Form) Succeed() error {
	if f.state != Submitting {
		return ErrNoSubmission
	}
	f.Close()
	return nil
}

// Fail reopens the form for editing with the error's message.
func (f *Form) Fail(err error) error {
	if f.state != Submitting {
		return ErrNoSubmission
	}
	f.state = Editing
	f.message = MessageFor(err)
	return nil
}

// Submit runs one full submit: validates, calls create or update on b,
// invalidates both timetable scopes on success. The returned error is the
// backend error, already recorded as the form message.
func (f *Form) Submit(ctx context.Context, b Backend, inv Invalidator) error {
	ok, err := f.Begin()
	if err != nil || !ok {
		return err
	}

	if f.cell.EntryID != "" {
		err = b.UpdateEntry(ctx, f.cell.EntryID, f.values)
	} else {
		_, err = b.CreateEntry(ctx, f.values)
	}
	if err != nil {
		_ = f.Fail(err)
		return err
	}

	if inv != nil {
		inv.Invalidate(ScopeTimetable, ScopeTimetables)
	}
	return f.Succeed()
}

// MessageFor picks the text shown for a failed submit.
func MessageFor(err error) string {
	var me MessageError
	if errors.As(err, &me) {
		if msg := strings.TrimSpace(me.UserMessage()); msg != "" {
			return msg
		}
	}
	return GenericFailure
}

func (f *Form) editable() bool {
	switch f.state {
	case Viewing, Creating, Editing:
		return true
	}
	return false
}

func (f *Form) loadScope() {
	f.scope, f.scoped = Scope{}, false
	if f.lookup == nil || f.values.SubjectID == "" {
		return
	}
	f.scope, f.scoped = f.lookup(f.values.SubjectID)
}

func (f *Form) pruneToScope() {
	if !f.scoped {
		if f.values.SubjectID == "" {
			f.values.TeacherID = ""
			f.values.SubjectTypeID = ""
		}
		return
	}
	if !f.scope.allowsTeacher(f.values.TeacherID) {
		f.values.TeacherID = ""
	}
	if !f.scope.allowsType(f.values.SubjectTypeID) {
		f.values.SubjectTypeID = ""
	}
}

func (f *Form) missingFields() []string {
	var out []string
	if f.values.DayID == "" {
		out = append(out, "day")
	}
	if f.values.PeriodID == "" {
		out = append(out, "period")
	}
	if f.values.SubjectID == "" {
		out = append(out, "subject")
	}
	if f.values.RoomID == "" {
		out = append(out, "room")
	}
	if f.values.TeacherID == "" {
		out = append(out, "teacher")
	}
	return out
}

func joinFields(fs []string) string {
	switch len(fs) {
	case 0:
		return ""
	case 1:
		return "a " + fs[0]
	}
	return strings.Join(fs[:len(fs)-1], ", ") + " and " + fs[len(fs)-1]
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
