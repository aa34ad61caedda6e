// Package recordstore abstracts the external hosted record store holding the
// domain entities. The engine only needs equality lookups and shallow field
// updates; the store's own query language stays behind this interface.
package recordstore

import "context"

// Entity names the record collections the engine touches.
type Entity string

const (
	EntityContact       Entity = "contacts"
	EntityEducation     Entity = "educations"
	EntityInstitution   Entity = "institutions"
	EntityProgram       Entity = "programs"
	EntityParticipation Entity = "participations"
	EntityTeam          Entity = "teams"
	EntityCohort        Entity = "cohorts"
)

// Record is a schema-flexible row. Fields hold JSON-compatible values.
type Record struct {
	ID     string
	Fields map[string]any
}

// Filter is an equality condition. Against a list-valued field it matches
// when the list contains the value (how the hosted store treats multi-value
// columns).
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the record store contract. FindOne and GetByID return
// sentinel.ErrRecordNotFound (possibly wrapped) when nothing matches.
type Store interface {
	FindOne(ctx context.Context, entity Entity, filters ...Filter) (*Record, error)
	FindMany(ctx context.Context, entity Entity, filters ...Filter) ([]Record, error)
	GetByID(ctx context.Context, entity Entity, id string) (*Record, error)
	Update(ctx context.Context, entity Entity, id string, fields map[string]any) (*Record, error)
}

// Str reads a string field, returning "" for missing or non-string values.
func (r *Record) Str(field string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Fields[field].(string); ok {
		return v
	}
	return ""
}

// Strs reads a list-of-strings field, tolerating []any payloads from JSON
// decoding.
func (r *Record) Strs(field string) []string {
	if r == nil {
		return nil
	}
	switch v := r.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int reads a numeric field, tolerating float64 payloads from JSON decoding.
func (r *Record) Int(field string) int {
	if r == nil {
		return 0
	}
	switch v := r.Fields[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
