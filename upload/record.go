package upload

import (
	"context"

	"github.com/spf13/cast"
)

// Record is an entity instance as seen by the hooks: its identity and the
// field payload the host is about to validate, save or delete.
type Record struct {
	ID   string
	Data map[string]any
}

// NewRecord returns a record with an initialised payload.
func NewRecord(id string, data map[string]any) *Record {
	if data == nil {
		data = make(map[string]any)
	}
	return &Record{ID: id, Data: data}
}

// FileRef is the stored file's metadata as written onto the record.
type FileRef struct {
	Name string
	Type string
	Size int64
}

// RecordReader loads the persisted payload of a record. BeforeDelete uses it
// to learn the stored filename without trusting in-memory state.
type RecordReader interface {
	ReadRecord(ctx context.Context, alias, id string) (map[string]any, error)
}

// RecordReaderFunc adapts a function to RecordReader.
type RecordReaderFunc func(ctx context.Context, alias, id string) (map[string]any, error)

// ReadRecord calls f.
func (f RecordReaderFunc) ReadRecord(ctx context.Context, alias, id string) (map[string]any, error) {
	return f(ctx, alias, id)
}

func refFromData(fields Fields, data map[string]any) (FileRef, bool) {
	name := cast.ToString(data[fields.Name])
	if name == "" {
		return FileRef{}, false
	}
	return FileRef{
		Name: name,
		Type: cast.ToString(data[fields.Type]),
		Size: cast.ToInt64(data[fields.Size]),
	}, true
}
