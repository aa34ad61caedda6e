package recordstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"memberhub/pkg/platform/sentinel"
)

// InMemoryStore keeps records in process memory. It backs unit tests and
// local development; production talks to the hosted store or Postgres.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[Entity]map[string]Record
}

// NewInMemoryStore creates an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[Entity]map[string]Record)}
}

// Seed inserts a record, generating an id when none is set, and returns the
// id. Intended for tests and fixtures.
func (s *InMemoryStore) Seed(entity Entity, record Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if s.records[entity] == nil {
		s.records[entity] = make(map[string]Record)
	}
	s.records[entity][record.ID] = record
	return record.ID
}

func (s *InMemoryStore) FindOne(ctx context.Context, entity Entity, filters ...Filter) (*Record, error) {
	records, err := s.FindMany(ctx, entity, filters...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sentinel.ErrRecordNotFound
	}
	record := records[0]
	return &record, nil
}

func (s *InMemoryStore) FindMany(_ context.Context, entity Entity, filters ...Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, record := range s.records[entity] {
		if matchesAll(record, filters) {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, entity Entity, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[entity][id]; ok {
		cloned := cloneRecord(record)
		return &cloned, nil
	}
	return nil, sentinel.ErrRecordNotFound
}

func (s *InMemoryStore) Update(_ context.Context, entity Entity, id string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[entity][id]
	if !ok {
		return nil, fmt.Errorf("update %s/%s: %w", entity, id, sentinel.ErrRecordNotFound)
	}
	if record.Fields == nil {
		record.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		record.Fields[k] = v
	}
	s.records[entity][id] = record
	cloned := cloneRecord(record)
	return &cloned, nil
}

func matchesAll(record Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(record.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// matches applies equality, treating list-valued fields as containment.
func matches(fieldValue, want any) bool {
	switch v := fieldValue.(type) {
	case []string:
		for _, item := range v {
			if item == want {
				return true
			}
		}
		return false
	case []any:
		for _, item := range v {
			if item == want {
				return true
			}
		}
		return false
	default:
		return fieldValue == want
	}
}

func cloneRecord(record Record) Record {
	fields := make(map[string]any, len(record.Fields))
	for k, v := range record.Fields {
		fields[k] = v
	}
	return Record{ID: record.ID, Fields: fields}
}
