package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
)

// Kind says how a value is represented on each side.
type Kind int

const (
	// KindScalar values (strings) cross unchanged.
	KindScalar Kind = iota
	// KindNumber values are float64 locally, any numeric type remotely.
	KindNumber
	// KindBool values are bool locally; some drivers return integers.
	KindBool
	// KindJSON values (arrays, objects) are stored as JSON text remotely.
	KindJSON
	// KindTime values are TimestampLayout strings locally, timestamps remotely.
	KindTime
)

// Field maps one local camelCase field to its remote column.
type Field struct {
	Local  string
	Remote string
	Kind   Kind
}

// Mapping is the symmetric translation table of one entity type.
type Mapping struct {
	Entity models.EntityType
	Table  string
	Fields []Field
	// Exclude lists local fields that are never sent.
	Exclude []string

	byLocal  map[string]Field
	excluded map[string]struct{}
}

func newMapping(entity models.EntityType, table string, fields []Field, exclude ...string) *Mapping {
	common := []Field{
		{"id", "id", KindScalar},
		{models.FieldTenantID, "tenant_id", KindScalar},
		{models.FieldUpdatedAt, "updated_at", KindTime},
	}
	m := &Mapping{
		Entity:   entity,
		Table:    table,
		Fields:   append(common, fields...),
		Exclude:  exclude,
		byLocal:  make(map[string]Field),
		excluded: make(map[string]struct{}),
	}
	for _, f := range m.Fields {
		m.byLocal[f.Local] = f
	}
	for _, name := range exclude {
		m.excluded[name] = struct{}{}
	}
	return m
}

var mappings = map[models.EntityType]*Mapping{
	models.EntityOrders: newMapping(models.EntityOrders, "service_orders", []Field{
		{"customerId", "customer_id", KindScalar},
		{"date", "date", KindScalar},
		{"entryDate", "entry_date", KindScalar},
		{"exitDate", "exit_date", KindScalar},
		{"customerName", "customer_name", KindScalar},
		{"phoneNumber", "phone_number", KindScalar},
		{"address", "address", KindScalar},
		{"deviceBrand", "device_brand", KindScalar},
		{"deviceModel", "device_model", KindScalar},
		{"defect", "defect", KindScalar},
		{"repairDetails", "repair_details", KindScalar},
		{"partsCost", "parts_cost", KindNumber},
		{"serviceCost", "service_cost", KindNumber},
		{"total", "total", KindNumber},
		{"status", "status", KindScalar},
		{"photos", "photos", KindJSON},
		{"finishedPhotos", "finished_photos", KindJSON},
		{models.FieldIsDeleted, "is_deleted", KindBool},
	}),
	models.EntityProducts: newMapping(models.EntityProducts, "products", []Field{
		{"name", "name", KindScalar},
		{"barcode", "barcode", KindScalar},
		{"photo", "photo", KindScalar},
		{"costPrice", "cost_price", KindNumber},
		{"salePrice", "sale_price", KindNumber},
		{"quantity", "quantity", KindNumber},
	}),
	models.EntitySales: newMapping(models.EntitySales, "sales", []Field{
		{"productId", "product_id", KindScalar},
		{"productName", "product_name", KindScalar},
		{"date", "date", KindScalar},
		{"quantity", "quantity", KindNumber},
		{"originalPrice", "original_price", KindNumber},
		{"discount", "discount", KindNumber},
		{"surcharge", "surcharge", KindNumber},
		{"finalPrice", "final_price", KindNumber},
		{"costAtSale", "cost_at_sale", KindNumber},
		{"paymentMethod", "payment_method", KindScalar},
		{"paymentEntriesJson", "payment_entries_json", KindScalar},
		{"change", "change", KindNumber},
		{"sellerName", "seller_name", KindScalar},
		{"transactionId", "transaction_id", KindScalar},
		{models.FieldIsDeleted, "is_deleted", KindBool},
	}),
	models.EntityTransactions: newMapping(models.EntityTransactions, "transactions", []Field{
		{"type", "type", KindScalar},
		{"description", "description", KindScalar},
		{"amount", "amount", KindNumber},
		{"date", "date", KindScalar},
		{"category", "category", KindScalar},
		{"paymentMethod", "payment_method", KindScalar},
		{models.FieldIsDeleted, "is_deleted", KindBool},
	}),
	models.EntityCustomers: newMapping(models.EntityCustomers, "customers", []Field{
		{"name", "name", KindScalar},
		{"phoneNumber", "phone_number", KindScalar},
		{"address", "address", KindScalar},
		{"document", "document", KindScalar},
		{"email", "email", KindScalar},
		{"notes", "notes", KindScalar},
		{models.FieldIsDeleted, "is_deleted", KindBool},
	}),
	models.EntityUsers: newMapping(models.EntityUsers, "users", []Field{
		{"name", "name", KindScalar},
		{"username", "username", KindScalar},
		{"role", "role", KindScalar},
		{"passwordHash", "password_hash", KindScalar},
		{"photo", "photo", KindScalar},
		{"specialty", "specialty", KindScalar},
	}),
}

// MappingFor returns the field table of a row-per-record entity type.
// Settings is stored as a blob and has no field table.
func MappingFor(entity models.EntityType) (*Mapping, error) {
	m, ok := mappings[entity]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "no remote mapping for %s", entity)
	}
	return m, nil
}

// ToRemote translates a local record into a remote row. Mapped fields are
// renamed and converted, excluded fields are dropped, unknown fields pass
// through under their local name.
func (m *Mapping) ToRemote(rec models.Record) (map[string]any, error) {
	row := make(map[string]any, len(rec))
	for key, value := range rec {
		if _, skip := m.excluded[key]; skip {
			continue
		}
		f, known := m.byLocal[key]
		if !known {
			row[key] = value
			continue
		}
		converted, err := toRemoteValue(f, value)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTranslation,
				fmt.Sprintf("%s %s: field %s", m.Entity, rec.ID(), key), err)
		}
		row[f.Remote] = converted
	}
	return row, nil
}

// FromRemote translates a remote row into a local record. Columns outside
// the field table are ignored, NULL columns come back as nil.
func (m *Mapping) FromRemote(row map[string]any) (models.Record, error) {
	rec := make(models.Record, len(m.Fields))
	for _, f := range m.Fields {
		value, ok := row[f.Remote]
		if !ok {
			continue
		}
		if value == nil {
			rec[f.Local] = nil
			continue
		}
		converted, err := fromRemoteValue(f, value)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTranslation,
				fmt.Sprintf("%s %v: column %s", m.Entity, row["id"], f.Remote), err)
		}
		rec[f.Local] = converted
	}
	return rec, nil
}

// Columns returns the remote column names, in table order.
func (m *Mapping) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Remote
	}
	return cols
}

func toRemoteValue(f Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil
	case KindNumber:
		switch v := value.(type) {
		case float64, float32, int, int32, int64:
			return v, nil
		case json.Number:
			return v.Float64()
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}
	case KindJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case KindTime:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected timestamp string, got %T", value)
		}
		if s == "" {
			return nil, nil
		}
		t, err := models.ParseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	default:
		return value, nil
	}
}

func fromRemoteValue(f Field, value any) (any, error) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	switch f.Kind {
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		case float64:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}
		return nil, fmt.Errorf("expected bool, got %T", value)
	case KindNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
		return nil, fmt.Errorf("expected number, got %T", value)
	case KindJSON:
		s, ok := value.(string)
		if !ok {
			// drivers that decode json columns themselves
			return value, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	case KindTime:
		switch v := value.(type) {
		case time.Time:
			return models.FormatTimestamp(v), nil
		case string:
			t, err := parseRemoteTime(v)
			if err != nil {
				return nil, err
			}
			return models.FormatTimestamp(t), nil
		}
		return nil, fmt.Errorf("expected timestamp, got %T", value)
	default:
		return value, nil
	}
}

// parseRemoteTime accepts the layouts drivers hand back for timestamp columns.
func parseRemoteTime(s string) (time.Time, error) {
	layouts := []string{
		models.TimestampLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
