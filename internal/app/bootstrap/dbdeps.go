// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	changerequeststore "github.com/dalemusser/schedulehub/internal/app/store/changerequests"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/generator"
	"github.com/dalemusser/schedulehub/internal/app/system/querycache"
	"github.com/dalemusser/schedulehub/internal/app/system/ratelimit"
	"github.com/dalemusser/schedulehub/internal/app/system/tasks"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Services is allocated by ConnectDB and filled in by Startup.
	Services *Services
}

// Services are the long-lived collaborators shared by the feature handlers.
type Services struct {
	Cache     *querycache.Cache
	Timetable *timetable.Service
	Changes   *changes.Service
	Requests  *changerequeststore.Store
	Generator *generator.Client
	Audit     *auditlog.Logger
	Limiter   *ratelimit.LoginLimiter
	Runner    *tasks.Runner
}
