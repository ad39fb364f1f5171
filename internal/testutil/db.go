package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultTestURI is used when SCHEDULEHUB_TEST_MONGO_URI is unset.
const DefaultTestURI = "mongodb://localhost:27017"

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

func sharedClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		uri := os.Getenv("SCHEDULEHUB_TEST_MONGO_URI")
		if uri == "" {
			uri = DefaultTestURI
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(2*time.Second))
		if err != nil {
			clientErr = err
			return
		}
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			clientErr = err
			return
		}
		client = c
	})
	return client, clientErr
}

// SetupTestDB returns a fresh database with indexes applied, dropped when the
// test ends. The test is skipped when no MongoDB server is reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	c, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	name := dbName(t)
	db := c.Database(name)

	ctx, cancel := TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

// MongoClient returns the shared test client, skipping the test when unavailable.
func MongoClient(t *testing.T) *mongo.Client {
	t.Helper()
	c, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	return c
}

// TestContext returns a context suitable for a single test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// dbName builds a unique, Mongo-legal database name (max 63 bytes).
func dbName(t *testing.T) string {
	base := strings.NewReplacer("/", "_", " ", "_", ".", "_", "$", "_", "\"", "_").Replace(t.Name())
	if len(base) > 30 {
		base = base[:30]
	}
	return fmt.Sprintf("sh_test_%s_%s", base, primitive.NewObjectID().Hex()[16:])
}
