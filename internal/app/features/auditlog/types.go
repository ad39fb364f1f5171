// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
)

// listItem is one audit event row.
type listItem struct {
	ID         string
	Timestamp  time.Time
	Category   string
	EventType  string
	ActorName  string // resolved from ActorID
	TargetName string // resolved from UserID
	Collection string
	RecordID   string
	IP         string
	Success    bool
	Reason     string
	Details    map[string]string
}

type listData struct {
	viewdata.BaseVM

	Items []listItem

	// Filters
	Category  string
	EventType string
	StartDate string
	EndDate   string

	Categories []categoryOption
	EventTypes []string

	// Pagination
	Page       int
	TotalPages int
	Total      int64
	Shown      int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

type categoryOption struct {
	Value string
	Label string
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication"},
		{Value: audit.CategoryAdmin, Label: "Catalog changes"},
		{Value: audit.CategorySchedule, Label: "Timetables"},
	}
}

// eventTypesForCategory lists the event types of category, or all of them
// when category is empty.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventPasswordChanged,
	}
	adminEvents := []string{
		audit.EventRecordCreated,
		audit.EventRecordUpdated,
		audit.EventRecordDeleted,
	}
	scheduleEvents := []string{
		audit.EventEntryCreated,
		audit.EventEntryUpdated,
		audit.EventEntryDeleted,
		audit.EventClassCombined,
		audit.EventClassSplit,
		audit.EventChangeRequested,
		audit.EventChangeApproved,
		audit.EventChangeRejected,
		audit.EventTimetablesGenerated,
		audit.EventTimetablesImported,
		audit.EventTimetablesExported,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategorySchedule:
		return scheduleEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(scheduleEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return append(all, scheduleEvents...)
	default:
		return nil
	}
}
