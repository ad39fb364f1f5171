// Package viewdata builds the page chrome shared by every server-rendered view.
package viewdata

import (
	"net/http"
	"sync"

	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// DefaultSiteName is used until SetSiteName is called.
const DefaultSiteName = "ScheduleHub"

// BaseVM contains common fields for all view models. Embed it:
//
//	type gridPage struct {
//	    viewdata.BaseVM
//	    Grid *timetablegrid.Grid[models.TimetableEntry]
//	}
type BaseVM struct {
	SiteName string

	IsLoggedIn bool
	IsAdmin    bool
	Role       string
	UserName   string

	Title       string
	BackURL     string
	CurrentPath string

	CSRFToken string

	// PendingRequests is shown as a badge in the admin nav.
	PendingRequests int64
}

// PendingCounter reports how many change requests await review.
type PendingCounter func(r *http.Request) int64

var (
	mu       sync.RWMutex
	siteName = DefaultSiteName
	pending  PendingCounter
)

// SetSiteName overrides the site name. Call once at startup.
func SetSiteName(name string) {
	if name == "" {
		return
	}
	mu.Lock()
	siteName = name
	mu.Unlock()
}

// SetPendingCounter installs the badge counter. Call once at startup.
func SetPendingCounter(fn PendingCounter) {
	mu.Lock()
	pending = fn
	mu.Unlock()
}

// NewBaseVM creates a fully populated BaseVM for a page.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	role, name, _, signedIn := authz.UserCtx(r)

	mu.RLock()
	vm := BaseVM{
		SiteName:    siteName,
		IsLoggedIn:  signedIn,
		IsAdmin:     signedIn && authz.IsAdmin(r),
		Role:        role,
		UserName:    name,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}
	counter := pending
	mu.RUnlock()

	if vm.IsAdmin && counter != nil {
		vm.PendingRequests = counter(r)
	}
	return vm
}
