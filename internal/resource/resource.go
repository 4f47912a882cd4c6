// Package resource resolves, per FHIR resource type, which fields are never
// time-shifted, and wraps a decoded record with that policy.
package resource

import (
	"errors"
	"sort"

	"github.com/flarebyte/timewarp/internal/document"
	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/timeshift"
)

const (
	// TypeField is the discriminator naming a record's resource type.
	TypeField = "resourceType"
	// IDField is the record identifier used to address write-backs.
	IDField = "id"
)

// ErrMissingResourceType is returned when a record has no resourceType.
var ErrMissingResourceType = errors.New("record has no resourceType")

// ErrNotObject is returned when a record is not a JSON object.
var ErrNotObject = errors.New("record is not a JSON object")

// baseExclusions holds the audit field every resource keeps untouched.
var baseExclusions = [...]string{"lastUpdated"}

// BaseExclusions returns a fresh copy of the default exclusion set.
func BaseExclusions() []string {
	return append([]string(nil), baseExclusions[:]...)
}

// Behavior is the per-type policy. Extend receives a copy of the base set and
// returns it with type-specific additions.
type Behavior struct {
	Type   string
	Extend func(base []string) []string
}

// Exclusions returns the base set followed by this type's additions.
func (b Behavior) Exclusions() []string {
	base := BaseExclusions()
	if b.Extend == nil {
		return base
	}
	return b.Extend(base)
}

func appendFields(fields ...string) func([]string) []string {
	return func(base []string) []string {
		return append(base, fields...)
	}
}

// behaviors is the static registration table. Add a type by adding a row.
var behaviors = []Behavior{
	{Type: "MedicationRequest"},
	{Type: "Patient", Extend: appendFields("birthDate")},
}

var registry = buildRegistry(behaviors)

func buildRegistry(table []Behavior) map[string]Behavior {
	m := make(map[string]Behavior, len(table))
	for _, b := range table {
		m[b.Type] = b
	}
	return m
}

// Lookup returns the behavior registered for label, or the default behavior.
func Lookup(label string) Behavior {
	if b, ok := registry[label]; ok {
		return b
	}
	return Behavior{Type: label}
}

// Types lists the registered resource types in sorted order.
func Types() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resource is a decoded record bound to the behavior of its type.
type Resource struct {
	Type     string
	Data     any
	behavior Behavior
}

// Build binds a decoded record to its behavior.
func Build(data any) (*Resource, error) {
	obj, ok := document.AsObject(data)
	if !ok {
		return nil, failure.New(failure.MalformedInput, "build", ErrNotObject)
	}
	raw, ok := obj.Get(TypeField)
	if !ok {
		return nil, failure.New(failure.UnknownDiscriminator, "build", ErrMissingResourceType)
	}
	typ, ok := raw.(string)
	if !ok || typ == "" {
		return nil, failure.New(failure.UnknownDiscriminator, "build", errors.New("resourceType must be a non-empty string"))
	}
	return &Resource{Type: typ, Data: obj, behavior: Lookup(typ)}, nil
}

// ID returns the record identifier when present.
func (r *Resource) ID() (string, bool) {
	id, ok := document.StringField(r.Data, IDField)
	return id, ok && id != ""
}

// Exclusions returns the fields left untouched for this record.
func (r *Resource) Exclusions() []string {
	return r.behavior.Exclusions()
}

// Shift returns a shifted copy of the record and whether any value changed.
// r is left as it was.
func (r *Resource) Shift(days int) (*Resource, bool) {
	shifted := timeshift.Shift(r.Data, days, r.Exclusions())
	return &Resource{Type: r.Type, Data: shifted, behavior: r.behavior}, timeshift.Changed(r.Data, shifted)
}
