package db

import (
	"fmt"

	"github.com/assistpro/shopsync/internal/models"
)

// searchSpec names the record fields that feed an entity table's search columns.
// occurredAt is a fallback chain: the first non-empty field wins.
type searchSpec struct {
	label      string
	status     string
	ref        string
	occurredAt []string
}

var searchSpecs = map[models.EntityType]searchSpec{
	models.EntityOrders:       {label: "customerName", status: "status", ref: "customerId", occurredAt: []string{"entryDate", "date"}},
	models.EntityProducts:     {label: "name", ref: "barcode"},
	models.EntitySales:        {label: "productName", status: "paymentMethod", ref: "productId", occurredAt: []string{"date"}},
	models.EntityTransactions: {label: "description", status: "type", ref: "category", occurredAt: []string{"date"}},
	models.EntityCustomers:    {label: "name", ref: "phoneNumber"},
	models.EntityUsers:        {label: "name", status: "role", ref: "username"},
	models.EntitySettings:     {label: "storeName"},
}

type searchColumns struct {
	label      string
	status     string
	ref        string
	occurredAt string
}

func columnsFor(entity models.EntityType, r models.Record) searchColumns {
	spec := searchSpecs[entity]
	cols := searchColumns{
		label:  r.String(spec.label),
		status: r.String(spec.status),
		ref:    r.String(spec.ref),
	}
	for _, field := range spec.occurredAt {
		if v := r.String(field); v != "" {
			cols.occurredAt = v
			break
		}
	}
	return cols
}

// tableFor maps an entity type to its table; the name is never taken from user input.
func tableFor(entity models.EntityType) (string, error) {
	if !entity.Valid() {
		return "", fmt.Errorf("unknown entity type %q", entity)
	}
	return string(entity), nil
}
