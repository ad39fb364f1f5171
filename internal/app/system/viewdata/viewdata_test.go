package viewdata_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewBaseVM_Visitor(t *testing.T) {
	vm := viewdata.NewBaseVM(httptest.NewRequest("GET", "/login", nil), "Sign in", "/")
	if vm.IsLoggedIn || vm.IsAdmin {
		t.Errorf("visitor flagged as signed in: %+v", vm)
	}
	if vm.SiteName == "" || vm.Title != "Sign in" {
		t.Errorf("unexpected vm %+v", vm)
	}
}

func TestNewBaseVM_AdminPendingBadge(t *testing.T) {
	viewdata.SetPendingCounter(func(*http.Request) int64 { return 3 })
	defer viewdata.SetPendingCounter(nil)

	admin := auth.WithTestUser(httptest.NewRequest("GET", "/", nil),
		&auth.SessionUser{ID: primitive.NewObjectID().Hex(), Name: "Ada", Role: "admin"})
	vm := viewdata.NewBaseVM(admin, "Dashboard", "/")
	if !vm.IsAdmin || vm.PendingRequests != 3 || vm.UserName != "Ada" {
		t.Errorf("unexpected admin vm %+v", vm)
	}

	teacher := auth.WithTestUser(httptest.NewRequest("GET", "/", nil),
		&auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: "teacher"})
	if vm := viewdata.NewBaseVM(teacher, "", "/"); vm.PendingRequests != 0 || vm.IsAdmin {
		t.Errorf("teacher should not see the badge: %+v", vm)
	}
}
