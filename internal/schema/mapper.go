// Package schema translates source-native field names into a unified schema.
// It documents the sources and detects drift; the workflows read native
// field names directly.
package schema

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/johnwards/pipemon/internal/domain"
)

// Unified entities.
const (
	EntityAccount     = "account"
	EntityOpportunity = "opportunity"
	EntityHealth      = "health"
	EntityUsage       = "usage"
)

// Field is one attribute of a unified entity.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Unified is the declarative target schema.
var Unified = map[string][]Field{
	EntityAccount: {
		{"account_id", "string"},
		{"account_name", "string"},
		{"industry", "string"},
		{"revenue", "number"},
		{"employee_count", "number"},
	},
	EntityOpportunity: {
		{"opportunity_id", "string"},
		{"opportunity_name", "string"},
		{"account_id", "string"},
		{"stage", "string"},
		{"amount", "number"},
		{"close_date", "date"},
		{"probability", "number"},
	},
	EntityHealth: {
		{"account_id", "string"},
		{"health_score", "number"},
		{"last_updated", "date"},
	},
	EntityUsage: {
		{"account_id", "string"},
		{"last_login_days", "number"},
		{"sessions_30d", "number"},
		{"features_used", "array"},
	},
}

// TargetType returns the unified type of a target field, or "unknown".
func TargetType(entity, target string) string {
	for _, f := range Unified[entity] {
		if f.Name == target {
			return f.Type
		}
	}
	return "unknown"
}

// Mapping is one source-to-target field translation.
type Mapping struct {
	SourceField string `json:"source_field"`
	TargetField string `json:"target_field"`
	TargetType  string `json:"target_type"`
}

// ErrInvalidMapping rejects mappings with empty components.
var ErrInvalidMapping = errors.New("source, entity, source field and target field are required")

type fieldMap struct {
	order   []string
	targets map[string]string
}

func (m *fieldMap) set(src, tgt string) {
	if _, ok := m.targets[src]; !ok {
		m.order = append(m.order, src)
	}
	m.targets[src] = tgt
}

// Mapper holds the source mapping table. It is safe for concurrent use.
type Mapper struct {
	mu       sync.RWMutex
	mappings map[string]map[string]*fieldMap
}

// NewMapper returns a mapper loaded with the built-in mappings for the given
// registry names of the CRM, health and usage sources.
func NewMapper(crmSource, healthSource, usageSource string) *Mapper {
	m := &Mapper{mappings: map[string]map[string]*fieldMap{}}
	defaults := []struct {
		source, entity string
		pairs          [][2]string
	}{
		{crmSource, EntityOpportunity, [][2]string{
			{domain.FieldID, "opportunity_id"},
			{domain.FieldName, "opportunity_name"},
			{domain.FieldAccountID, "account_id"},
			{domain.FieldStageName, "stage"},
			{domain.FieldAmount, "amount"},
			{domain.FieldCloseDate, "close_date"},
			{domain.FieldProbability, "probability"},
		}},
		{crmSource, EntityAccount, [][2]string{
			{"Id", "account_id"},
			{"Name", "account_name"},
			{"Industry", "industry"},
			{"AnnualRevenue", "revenue"},
			{"NumberOfEmployees", "employee_count"},
		}},
		{healthSource, EntityHealth, [][2]string{
			{"account_id", "account_id"},
			{"health_score", "health_score"},
			{"last_updated", "last_updated"},
		}},
		{usageSource, EntityUsage, [][2]string{
			{"account_id", "account_id"},
			{"last_login_days", "last_login_days"},
			{"sessions_30d", "sessions_30d"},
			{"features_used", "features_used"},
		}},
	}
	for _, d := range defaults {
		for _, p := range d.pairs {
			m.add(d.source, d.entity, p[0], p[1])
		}
	}
	return m
}

func (m *Mapper) add(source, entity, src, tgt string) {
	entities, ok := m.mappings[source]
	if !ok {
		entities = map[string]*fieldMap{}
		m.mappings[source] = entities
	}
	fm, ok := entities[entity]
	if !ok {
		fm = &fieldMap{targets: map[string]string{}}
		entities[entity] = fm
	}
	fm.set(src, tgt)
}

// AddMapping adds or replaces a single field translation.
func (m *Mapper) AddMapping(source, entity, sourceField, targetField string) error {
	if source == "" || entity == "" || sourceField == "" || targetField == "" {
		return ErrInvalidMapping
	}
	m.mu.Lock()
	m.add(source, entity, sourceField, targetField)
	m.mu.Unlock()
	return nil
}

func (m *Mapper) lookup(source, entity string) *fieldMap {
	entities, ok := m.mappings[source]
	if !ok {
		return nil
	}
	return entities[entity]
}

// Map renames keys of every record per the mapping for source and entity.
// Keys without a mapping are dropped. Records pass through unchanged when no
// mapping exists for the pair.
func (m *Mapper) Map(records []domain.Record, source, entity string) []domain.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fm := m.lookup(source, entity)
	if fm == nil {
		return records
	}
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		mapped := make(domain.Record, len(fm.order))
		for _, src := range fm.order {
			if v, ok := rec[src]; ok {
				mapped[fm.targets[src]] = v
			}
		}
		out = append(out, mapped)
	}
	return out
}

// UnmappedFields returns, sorted, the keys present in any record that have
// no mapping for source and entity.
func (m *Mapper) UnmappedFields(records []domain.Record, source, entity string) []string {
	m.mu.RLock()
	fm := m.lookup(source, entity)
	mapped := map[string]bool{}
	if fm != nil {
		for src := range fm.targets {
			mapped[src] = true
		}
	}
	m.mu.RUnlock()

	seen := map[string]bool{}
	out := []string{}
	for _, rec := range records {
		for k := range rec {
			if mapped[k] || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Visualization lists every mapping as source → entity → ordered fields.
func (m *Mapper) Visualization() map[string]map[string][]Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string][]Mapping, len(m.mappings))
	for source, entities := range m.mappings {
		out[source] = make(map[string][]Mapping, len(entities))
		for entity, fm := range entities {
			rows := make([]Mapping, 0, len(fm.order))
			for _, src := range fm.order {
				tgt := fm.targets[src]
				rows = append(rows, Mapping{SourceField: src, TargetField: tgt, TargetType: TargetType(entity, tgt)})
			}
			out[source][entity] = rows
		}
	}
	return out
}

// mappingFile is the YAML layout accepted by LoadMappings:
//
//	mappings:
//	  salesforce:
//	    opportunity:
//	      Region__c: region
type mappingFile struct {
	Mappings map[string]map[string]map[string]string `yaml:"mappings"`
}

// LoadMappings extends the table from YAML and returns the number of field
// mappings added or replaced.
func (m *Mapper) LoadMappings(r io.Reader) (int, error) {
	var f mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode mappings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, source := range sortedKeys(f.Mappings) {
		entities := f.Mappings[source]
		for _, entity := range sortedKeys(entities) {
			fields := entities[entity]
			for _, src := range sortedKeys(fields) {
				tgt := fields[src]
				if src == "" || tgt == "" {
					return n, fmt.Errorf("%s.%s: %w", source, entity, ErrInvalidMapping)
				}
				m.add(source, entity, src, tgt)
				n++
			}
		}
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
