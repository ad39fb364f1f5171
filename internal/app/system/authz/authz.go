// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present or the user ID is malformed it returns
// "visitor", "", NilObjectID, false, so ok=true always means a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session; fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsTeacher reports whether the current request's user is a teacher.
func IsTeacher(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleTeacher
}

// TeacherID returns the Teacher record linked to the current user.
// Returns NilObjectID for admins, visitors and unlinked accounts.
func TeacherID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.TeacherID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.TeacherID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// CanEditTimetables reports whether the user may change timetable cells directly.
func CanEditTimetables(r *http.Request) bool {
	return IsAdmin(r)
}

// CanViewTeacher reports whether the user may open teacherID's timetable.
// Admins see every teacher; teachers only themselves.
func CanViewTeacher(r *http.Request, teacherID primitive.ObjectID) bool {
	if IsAdmin(r) {
		return true
	}
	own := TeacherID(r)
	return IsTeacher(r) && !own.IsZero() && own == teacherID
}

// CanRequestChange reports whether the user may file a change request for an
// entry taught by teacherID. Admins may file for any entry.
func CanRequestChange(r *http.Request, teacherID primitive.ObjectID) bool {
	return CanViewTeacher(r, teacherID)
}

// HasAnyRole reports whether the signed-in user holds one of roles.
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if strings.EqualFold(role, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// HasRole is HasAnyRole for one role.
func HasRole(r *http.Request, role string) bool { return HasAnyRole(r, role) }

// Role returns the lowercased role and whether a user is signed in.
func Role(r *http.Request) (string, bool) {
	role, _, _, ok := UserCtx(r)
	return role, ok
}
