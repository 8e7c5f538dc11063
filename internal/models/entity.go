package models

import "fmt"

// EntityType names a synchronized collection.
type EntityType string

const (
	EntityOrders       EntityType = "orders"
	EntityProducts     EntityType = "products"
	EntitySales        EntityType = "sales"
	EntityTransactions EntityType = "transactions"
	EntityCustomers    EntityType = "customers"
	EntityUsers        EntityType = "users"
	EntitySettings     EntityType = "settings"
)

// SettingsID is the fixed id of the per-tenant settings singleton.
const SettingsID = "app_settings"

// Entities lists every synchronized entity type in pull order.
var Entities = []EntityType{
	EntityOrders,
	EntityProducts,
	EntitySales,
	EntityTransactions,
	EntityCustomers,
	EntityUsers,
	EntitySettings,
}

// DeletePolicy decides what deleteEntity does for a type.
type DeletePolicy int

const (
	// DeleteSoft keeps the row and sets isDeleted.
	DeleteSoft DeletePolicy = iota
	// DeleteHard removes the row.
	DeleteHard
	// DeleteNone rejects deletes.
	DeleteNone
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteSoft:
		return "soft"
	case DeleteHard:
		return "hard"
	default:
		return "none"
	}
}

// DeletePolicy returns the delete semantics of the entity type.
func (e EntityType) DeletePolicy() DeletePolicy {
	switch e {
	case EntityOrders, EntitySales, EntityTransactions, EntityCustomers:
		return DeleteSoft
	case EntityProducts, EntityUsers:
		return DeleteHard
	default:
		return DeleteNone
	}
}

// IsSingleton reports whether the type holds exactly one record per tenant.
func (e EntityType) IsSingleton() bool {
	return e == EntitySettings
}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	for _, known := range Entities {
		if e == known {
			return true
		}
	}
	return false
}

func (e EntityType) String() string {
	return string(e)
}

// ParseEntityType validates a user-supplied entity name.
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(s)
	if !e.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return e, nil
}
