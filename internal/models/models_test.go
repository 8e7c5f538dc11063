// Package models tests for data model definitions.
package models

import (
	"testing"
	"time"
)

// =====================================================
// Record Tests
// =====================================================

func TestRecord_Accessors(t *testing.T) {
	r := Record{
		FieldID:        "o1",
		FieldTenantID:  "t1",
		FieldIsDeleted: true,
		FieldUpdatedAt: "2024-01-02T03:04:05.000000Z",
		"total":        12.5,
	}

	if r.ID() != "o1" {
		t.Errorf("ID() = %q, want o1", r.ID())
	}
	if r.TenantID() != "t1" {
		t.Errorf("TenantID() = %q, want t1", r.TenantID())
	}
	if !r.IsDeleted() {
		t.Error("IsDeleted() = false, want true")
	}
	if r.String("total") != "" {
		t.Error("String() should be empty for non-string values")
	}
}

func TestRecord_Stamp(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.FixedZone("BRT", -3*3600))

	r := Record{"name": "Cabo USB"}
	r.Stamp("tenant-a", now)

	if !IsValidID(r.ID()) {
		t.Errorf("Stamp() generated invalid id %q", r.ID())
	}
	if r.TenantID() != "tenant-a" {
		t.Errorf("TenantID() = %q, want tenant-a", r.TenantID())
	}
	if got, want := r.UpdatedAt(), "2024-05-06T10:08:09.123456Z"; got != want {
		t.Errorf("UpdatedAt() = %q, want %q", got, want)
	}

	r[FieldID] = "fixed"
	r.Stamp("tenant-a", now)
	if r.ID() != "fixed" {
		t.Error("Stamp() should keep an existing id")
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := Record{"name": "a"}
	c := r.Clone()
	c["name"] = "b"
	if r["name"] != "a" {
		t.Error("Clone() shares storage with the original")
	}
	var nilRecord Record
	if nilRecord.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestTimestampsSortLexically(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := FormatTimestamp(base)
	b := FormatTimestamp(base.Add(500 * time.Millisecond))
	c := FormatTimestamp(base.Add(10 * time.Second))

	if !(a < b && b < c) {
		t.Errorf("timestamps not lexically ordered: %q %q %q", a, b, c)
	}

	parsed, err := ParseTimestamp(b)
	if err != nil {
		t.Fatalf("ParseTimestamp() error = %v", err)
	}
	if !parsed.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("ParseTimestamp() = %v", parsed)
	}

	if _, err := ParseTimestamp("2024-01-01T00:00:00Z"); err != nil {
		t.Errorf("ParseTimestamp(RFC3339) error = %v", err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp() should reject garbage")
	}
}

func TestToRecordFromRecord(t *testing.T) {
	order := ServiceOrder{
		ID:           "o1",
		CustomerName: "Ana",
		DeviceBrand:  "Samsung",
		Total:        150,
		Status:       OrderStatusPending,
		Photos:       []string{"a.jpg"},
	}

	r, err := ToRecord(order)
	if err != nil {
		t.Fatalf("ToRecord() error = %v", err)
	}
	if r["customerName"] != "Ana" {
		t.Errorf("customerName = %v", r["customerName"])
	}
	if r["total"] != float64(150) {
		t.Errorf("total = %#v, want float64(150)", r["total"])
	}
	if _, ok := r["isDeleted"]; !ok {
		t.Error("soft-deletable entity should always carry isDeleted")
	}

	back, err := FromRecord[ServiceOrder](r)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if back.CustomerName != "Ana" || back.Total != 150 || len(back.Photos) != 1 {
		t.Errorf("FromRecord() = %+v", back)
	}
}

func TestDecodeRecordRejectsNonObject(t *testing.T) {
	if _, err := DecodeRecord([]byte(`[1,2]`)); err == nil {
		t.Error("DecodeRecord() should reject arrays")
	}
	if _, err := DecodeRecord([]byte(`null`)); err == nil {
		t.Error("DecodeRecord() should reject null")
	}
}

// =====================================================
// Entity Type Tests
// =====================================================

func TestEntityType_DeletePolicy(t *testing.T) {
	tests := []struct {
		entity EntityType
		want   DeletePolicy
	}{
		{EntityOrders, DeleteSoft},
		{EntitySales, DeleteSoft},
		{EntityTransactions, DeleteSoft},
		{EntityCustomers, DeleteSoft},
		{EntityProducts, DeleteHard},
		{EntityUsers, DeleteHard},
		{EntitySettings, DeleteNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			if got := tt.entity.DeletePolicy(); got != tt.want {
				t.Errorf("DeletePolicy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEntityType(t *testing.T) {
	for _, e := range Entities {
		got, err := ParseEntityType(string(e))
		if err != nil || got != e {
			t.Errorf("ParseEntityType(%q) = %q, %v", e, got, err)
		}
	}
	if _, err := ParseEntityType("invoices"); err == nil {
		t.Error("ParseEntityType() should reject unknown types")
	}
	if !EntitySettings.IsSingleton() || EntityOrders.IsSingleton() {
		t.Error("only settings is a singleton")
	}
}

func TestTableNames(t *testing.T) {
	if (PendingOperation{}).TableName() != "pending_operations" {
		t.Error("PendingOperation table name")
	}
	if (ConflictLog{}).TableName() != "conflict_log" {
		t.Error("ConflictLog table name")
	}
}
