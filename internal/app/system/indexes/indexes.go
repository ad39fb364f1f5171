// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// slotCollation matches the collation the timetable store queries slots with.
// An index is only used for a query with the same collation.
var slotCollation = &options.Collation{Locale: "en", Strength: 2}

type collectionSet struct {
	name   string
	models []mongo.IndexModel
}

/*
EnsureAll is called at startup. Each collection set is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, set := range desired() {
		if err := ensureIndexSet(ctx, db.Collection(set.name), set.models); err != nil {
			problems = append(problems, set.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Names lists the collections EnsureAll touches.
func Names() []string {
	sets := desired()
	out := make([]string, 0, len(sets))
	for _, s := range sets {
		out = append(out, s.name)
	}
	return out
}

func uniq(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetName(name)}
}

func idx(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

func k(fields ...string) bson.D {
	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			dir, f = -1, f[1:]
		}
		d = append(d, bson.E{Key: f, Value: dir})
	}
	return d
}

// namedCatalog covers the collections listed by name with a unique code.
func namedCatalog(coll, prefix, nameField string) collectionSet {
	return collectionSet{name: coll, models: []mongo.IndexModel{
		uniq("uniq_"+prefix+"_code", k("code")),
		idx("idx_"+prefix+"_"+strings.ReplaceAll(nameField, "_", "")+"__id", k(nameField, "_id")),
		idx("idx_"+prefix+"_status_"+strings.ReplaceAll(nameField, "_", "")+"__id", k("status", nameField, "_id")),
	}}
}

func desired() []collectionSet {
	return []collectionSet{
		{name: "users", models: []mongo.IndexModel{
			uniq("uniq_users_loginidci", k("login_id_ci")),
			idx("idx_users_role", k("role")),
			idx("idx_users_teacher", k("teacher_id")),
		}},
		{name: "code_values", models: []mongo.IndexModel{
			uniq("uniq_codevalues_category_code", k("category", "code")),
			idx("idx_codevalues_category_sort", k("category", "sort_order", "label_ci", "_id")),
		}},
		namedCatalog("rooms", "rooms", "name_ci"),
		namedCatalog("teachers", "teachers", "full_name_ci"),
		namedCatalog("subjects", "subjects", "name_ci"),
		namedCatalog("major_sections", "sections", "name_ci"),
		{name: "subjects", models: []mongo.IndexModel{
			idx("idx_subjects_teachers", k("teacher_ids")),
		}},
		{name: "students", models: []mongo.IndexModel{
			uniq("uniq_students_code", k("student_code")),
			idx("idx_students_fullnameci__id", k("full_name_ci", "_id")),
			idx("idx_students_section", k("major_section_id")),
		}},
		{name: "timetable_entries", models: []mongo.IndexModel{
			idx("idx_entries_section__id", k("section_id", "_id")),
			idx("idx_entries_teacher__id", k("teacher.id", "_id")),
			idx("idx_entries_group", k("combined_group")),
			{
				Keys:    k("day.name", "period.name"),
				Options: options.Index().SetName("idx_entries_slot").SetCollation(slotCollation),
			},
			{
				Keys:    k("section_id", "day.name", "period.name"),
				Options: options.Index().SetName("idx_entries_section_slot").SetCollation(slotCollation),
			},
			{
				Keys:    k("day.id", "period.id"),
				Options: options.Index().SetName("idx_entries_slot_ids").SetCollation(slotCollation),
			},
		}},
		{name: "change_requests", models: []mongo.IndexModel{
			idx("idx_changereq_status__id", k("status", "_id")),
			idx("idx_changereq_requester__id", k("requested_by", "-_id")),
			idx("idx_changereq_entry_status", k("entry_id", "status")),
		}},
		{name: "audit_events", models: []mongo.IndexModel{
			idx("idx_audit_ts", k("-timestamp", "-_id")),
			idx("idx_audit_category_event_ts", k("category", "event_type", "-timestamp")),
			idx("idx_audit_user_ts", k("user_id", "-timestamp")),
			idx("idx_audit_record_ts", k("record_id", "-timestamp")),
		}},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var ix existingIndex
		if err := cur.Decode(&ix); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(ix.Key)] = ix
	}
	return out, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet lists as empty on most servers.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		var unique *bool
		if m.Options != nil {
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", boolVal(unique)))

		if ex, ok := existing[sig]; ok {
			if boolVal(ex.Unique) == boolVal(unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			// Name or uniqueness differs: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && boolVal(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present on %s)", coll.Name(), name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
