// Package models provides data model definitions for shopsync.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Field names every entity record shares.
const (
	FieldID        = "id"
	FieldTenantID  = "tenantId"
	FieldIsDeleted = "isDeleted"
	FieldUpdatedAt = "updatedAt"
)

// TimestampLayout is fixed-width so timestamps sort lexically in SQL.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Record is the JSON-object snapshot the sync pipeline moves around.
// Keys are the local camelCase field names.
type Record map[string]any

// ID returns the record id or "" when absent.
func (r Record) ID() string {
	return r.String(FieldID)
}

// TenantID returns the owning tenant id or "" when absent.
func (r Record) TenantID() string {
	return r.String(FieldTenantID)
}

// UpdatedAt returns the raw updatedAt stamp.
func (r Record) UpdatedAt() string {
	return r.String(FieldUpdatedAt)
}

// IsDeleted reports whether the record carries the soft-delete flag.
func (r Record) IsDeleted() bool {
	v, _ := r[FieldIsDeleted].(bool)
	return v
}

// String returns the string value at key, or "" for missing or non-string values.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Stamp sets tenant and updatedAt, and generates an id when missing.
func (r Record) Stamp(tenantID string, now time.Time) {
	if r.ID() == "" {
		r[FieldID] = NewID()
	}
	r[FieldTenantID] = tenantID
	r[FieldUpdatedAt] = FormatTimestamp(now)
}

// NewID returns a client-generated UUID v4.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id parses as a UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout and RFC 3339 strings.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ToRecord converts a typed entity into its record form.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return DecodeRecord(data)
}

// FromRecord decodes a record into a typed entity.
func FromRecord[T any](r Record) (T, error) {
	var out T
	data, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %T: %w", out, err)
	}
	return out, nil
}

// DecodeRecord parses a JSON object.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("record is not a JSON object")
	}
	return r, nil
}

// Encode returns the record as JSON.
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}
