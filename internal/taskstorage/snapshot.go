package taskstorage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CurrentSchemaVersion is the schema version written by this build.
// Bump it when a field is added to Task and add the field to FieldDefaults.
const CurrentSchemaVersion = 5

// FieldDefault is one row of the schema-migration table: the JSON value a
// field takes when a stored record predates it.
type FieldDefault struct {
	Name  string
	Since int // schema version that introduced the field
	Value json.RawMessage
}

// FieldDefaults is applied to every record on load. The id field is not
// listed: a missing id is assigned from the record's position instead.
var FieldDefaults = []FieldDefault{
	{Name: "description", Since: 1, Value: json.RawMessage(`"unknown task"`)},
	{Name: "time_created", Since: 1, Value: json.RawMessage(`null`)},
	{Name: "time_finished", Since: 1, Value: json.RawMessage(`null`)},
	{Name: "finished", Since: 2, Value: json.RawMessage(`false`)},
	{Name: "deleted", Since: 2, Value: json.RawMessage(`false`)},
	{Name: "tags", Since: 2, Value: json.RawMessage(`[]`)},
	{Name: "requirements", Since: 3, Value: json.RawMessage(`[]`)},
	{Name: "dependents", Since: 3, Value: json.RawMessage(`[]`)},
	{Name: "parent", Since: 4, Value: json.RawMessage(`null`)},
	{Name: "subtasks", Since: 4, Value: json.RawMessage(`[]`)},
	{Name: "pinned", Since: 5, Value: json.RawMessage(`false`)},
}

// RecordMigration describes the fixups applied to one stored record.
type RecordMigration struct {
	ID         int
	Version    int      // schema version the record was written under
	Filled     []string // fields backfilled from FieldDefaults
	Converted  []string // timestamps rewritten from a legacy format
	AssignedID bool     // id was missing and taken from the position
}

func (m RecordMigration) changed() bool {
	return m.AssignedID || len(m.Filled) > 0 || len(m.Converted) > 0
}

// legacyTimeLayouts are the locale strings older servers stored for
// time_created and time_finished. They carry no zone and are read as local
// time.
var legacyTimeLayouts = []string{
	"1/2/2006, 3:04:05 PM",
	"1/2/2006, 15:04:05",
	"2006-01-02 15:04:05",
}

// MigrationReport lists every record that needed fixups during Decode.
type MigrationReport struct {
	Records []RecordMigration
}

// Migrated reports whether any record was changed by the migration pass.
func (r MigrationReport) Migrated() bool {
	return len(r.Records) > 0
}

// Encode serializes tasks as an indented JSON array in creation order.
func Encode(tasks []*Task) ([]byte, error) {
	if tasks == nil {
		tasks = []*Task{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot, backfilling fields absent from older records.
// Every record's id must equal its position in the array; a record with no
// id is given its position.
func Decode(data []byte) ([]*Task, MigrationReport, error) {
	var report MigrationReport

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	tasks := make([]*Task, 0, len(raw))
	for pos, fields := range raw {
		if fields == nil {
			return nil, report, fmt.Errorf("%w: record %d is null", ErrInvalidSnapshot, pos)
		}

		mig, err := migrateRecord(pos, fields)
		if err != nil {
			return nil, report, fmt.Errorf("%w: record %d: %v", ErrInvalidSnapshot, pos, err)
		}

		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, report, fmt.Errorf("%w: record %d: %v", ErrInvalidSnapshot, pos, err)
		}
		var task Task
		if err := json.Unmarshal(encoded, &task); err != nil {
			return nil, report, fmt.Errorf("%w: record %d: %v", ErrInvalidSnapshot, pos, err)
		}
		if task.ID != pos {
			return nil, report, fmt.Errorf("%w: record %d has id %d", ErrInvalidSnapshot, pos, task.ID)
		}
		normalize(&task)

		if mig.changed() {
			report.Records = append(report.Records, mig)
		}
		tasks = append(tasks, &task)
	}
	return tasks, report, nil
}

// migrateRecord fills absent fields in place and reports what it changed.
// An explicit null counts as absent for fields whose default is not null.
func migrateRecord(pos int, fields map[string]json.RawMessage) (RecordMigration, error) {
	mig := RecordMigration{ID: pos, Version: CurrentSchemaVersion}

	if id, ok := fields["id"]; !ok || isNull(id) {
		fields["id"] = json.RawMessage(fmt.Sprintf("%d", pos))
		mig.AssignedID = true
	}

	for _, def := range FieldDefaults {
		v, ok := fields[def.Name]
		if ok && !(isNull(v) && !isNull(def.Value)) {
			continue
		}
		fields[def.Name] = def.Value
		mig.Filled = append(mig.Filled, def.Name)
		if !ok && def.Since-1 < mig.Version {
			mig.Version = def.Since - 1
		}
	}

	for _, name := range []string{"time_created", "time_finished"} {
		converted, ok, err := convertLegacyTime(fields[name])
		if err != nil {
			return mig, fmt.Errorf("%s: %w", name, err)
		}
		if ok {
			fields[name] = converted
			mig.Converted = append(mig.Converted, name)
		}
	}
	return mig, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// convertLegacyTime rewrites a timestamp stored as epoch milliseconds or as
// a locale string into RFC 3339. ok is false when v needs no conversion.
func convertLegacyTime(v json.RawMessage) (json.RawMessage, bool, error) {
	if len(v) == 0 || isNull(v) {
		return nil, false, nil
	}

	var millis int64
	if err := json.Unmarshal(v, &millis); err == nil {
		return marshalTime(time.UnixMilli(millis))
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, false, fmt.Errorf("unrecognized timestamp %s", v)
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return nil, false, nil
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u202f", " "))
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return marshalTime(t)
		}
	}
	return nil, false, fmt.Errorf("unrecognized timestamp %q", s)
}

func marshalTime(t time.Time) (json.RawMessage, bool, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// normalize replaces explicit JSON nulls in set fields with empty sets.
func normalize(t *Task) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Requirements == nil {
		t.Requirements = []int{}
	}
	if t.Dependents == nil {
		t.Dependents = []int{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []int{}
	}
}
