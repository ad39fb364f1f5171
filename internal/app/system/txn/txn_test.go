package txn_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/system/txn"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"illegal operation code", mongo.CommandError{Code: 20, Message: "boom"}, true},
		{"not in transaction code", mongo.CommandError{Code: 263}, true},
		{"duplicate key code", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"standalone message", errors.New("Transaction numbers are only allowed on a Replica Set member or mongos"), true},
		{"wrapped", fmt.Errorf("combine class: %w", mongo.CommandError{Code: 20}), true},
		{"unrelated", errors.New("room already booked"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := txn.IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_NilClientCallsFnDirectly(t *testing.T) {
	calls := 0
	err := txn.Run(context.Background(), nil, zap.NewNop(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Run = %v after %d calls", err, calls)
	}
}

func TestRun_WritesAreVisible(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := testutil.MongoClient(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("timetable_entries")
	err := txn.Run(ctx, client, zap.NewNop(), func(sc context.Context) error {
		_, err := coll.InsertOne(sc, bson.M{"combined_group": "g1"})
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	n, _ := coll.CountDocuments(ctx, bson.M{"combined_group": "g1"})
	if n < 1 {
		t.Errorf("expected the write to be committed, found %d", n)
	}
}

func TestRun_PropagatesFnError(t *testing.T) {
	want := errors.New("teacher double-booked")
	err := txn.Run(context.Background(), nil, zap.NewNop(), func(ctx context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("Run = %v, want %v", err, want)
	}
}

func TestRun_JoinsSessionInContext(t *testing.T) {
	client := testutil.MongoClient(t)
	sess, err := client.StartSession()
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer sess.EndSession(context.Background())
	outer := mongo.NewSessionContext(context.Background(), sess)

	calls := 0
	err = txn.Run(outer, client, zap.NewNop(), func(ctx context.Context) error {
		calls++
		if got := mongo.SessionFromContext(ctx); got != sess {
			t.Errorf("fn ran in session %v, want the caller's", got)
		}
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Run = %v after %d calls", err, calls)
	}
}
