package remote

import (
	"time"

	"github.com/assistpro/shopsync/internal/models"
)

// Remote table definitions. The adapter reads and writes these tables as
// column maps; the structs exist so AutoMigrate can create them.

// ServiceOrderRow is a row of service_orders.
type ServiceOrderRow struct {
	ID             string     `gorm:"column:id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id;not null;index"`
	CustomerID     string     `gorm:"column:customer_id;index"`
	Date           string     `gorm:"column:date"`
	EntryDate      string     `gorm:"column:entry_date"`
	ExitDate       string     `gorm:"column:exit_date"`
	CustomerName   string     `gorm:"column:customer_name"`
	PhoneNumber    string     `gorm:"column:phone_number"`
	Address        string     `gorm:"column:address"`
	DeviceBrand    string     `gorm:"column:device_brand"`
	DeviceModel    string     `gorm:"column:device_model"`
	Defect         string     `gorm:"column:defect"`
	RepairDetails  string     `gorm:"column:repair_details"`
	PartsCost      float64    `gorm:"column:parts_cost"`
	ServiceCost    float64    `gorm:"column:service_cost"`
	Total          float64    `gorm:"column:total"`
	Status         string     `gorm:"column:status;index"`
	Photos         string     `gorm:"column:photos;type:text"`
	FinishedPhotos string     `gorm:"column:finished_photos;type:text"`
	IsDeleted      bool       `gorm:"column:is_deleted;not null;default:false;index"`
	UpdatedAt      *time.Time `gorm:"column:updated_at;autoUpdateTime:false;index"`
}

func (ServiceOrderRow) TableName() string { return "service_orders" }

// ProductRow is a row of products.
type ProductRow struct {
	ID        string     `gorm:"column:id;primaryKey"`
	TenantID  string     `gorm:"column:tenant_id;not null;index"`
	Name      string     `gorm:"column:name"`
	Barcode   string     `gorm:"column:barcode;index"`
	Photo     *string    `gorm:"column:photo;type:text"`
	CostPrice float64    `gorm:"column:cost_price"`
	SalePrice float64    `gorm:"column:sale_price"`
	Quantity  float64    `gorm:"column:quantity"`
	UpdatedAt *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (ProductRow) TableName() string { return "products" }

// SaleRow is a row of sales.
type SaleRow struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	TenantID           string     `gorm:"column:tenant_id;not null;index"`
	ProductID          string     `gorm:"column:product_id;index"`
	ProductName        string     `gorm:"column:product_name"`
	Date               string     `gorm:"column:date;index"`
	Quantity           float64    `gorm:"column:quantity"`
	OriginalPrice      float64    `gorm:"column:original_price"`
	Discount           float64    `gorm:"column:discount"`
	Surcharge          float64    `gorm:"column:surcharge"`
	FinalPrice         float64    `gorm:"column:final_price"`
	CostAtSale         float64    `gorm:"column:cost_at_sale"`
	PaymentMethod      string     `gorm:"column:payment_method"`
	PaymentEntriesJSON string     `gorm:"column:payment_entries_json;type:text"`
	Change             float64    `gorm:"column:change"`
	SellerName         string     `gorm:"column:seller_name"`
	TransactionID      string     `gorm:"column:transaction_id"`
	IsDeleted          bool       `gorm:"column:is_deleted;not null;default:false;index"`
	UpdatedAt          *time.Time `gorm:"column:updated_at;autoUpdateTime:false;index"`
}

func (SaleRow) TableName() string { return "sales" }

// TransactionRow is a row of transactions.
type TransactionRow struct {
	ID            string     `gorm:"column:id;primaryKey"`
	TenantID      string     `gorm:"column:tenant_id;not null;index"`
	Type          string     `gorm:"column:type"`
	Description   string     `gorm:"column:description"`
	Amount        float64    `gorm:"column:amount"`
	Date          string     `gorm:"column:date;index"`
	Category      string     `gorm:"column:category"`
	PaymentMethod string     `gorm:"column:payment_method"`
	IsDeleted     bool       `gorm:"column:is_deleted;not null;default:false;index"`
	UpdatedAt     *time.Time `gorm:"column:updated_at;autoUpdateTime:false;index"`
}

func (TransactionRow) TableName() string { return "transactions" }

// CustomerRow is a row of customers.
type CustomerRow struct {
	ID          string     `gorm:"column:id;primaryKey"`
	TenantID    string     `gorm:"column:tenant_id;not null;index"`
	Name        string     `gorm:"column:name"`
	PhoneNumber string     `gorm:"column:phone_number"`
	Address     string     `gorm:"column:address"`
	Document    string     `gorm:"column:document"`
	Email       string     `gorm:"column:email"`
	Notes       string     `gorm:"column:notes;type:text"`
	IsDeleted   bool       `gorm:"column:is_deleted;not null;default:false;index"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime:false;index"`
}

func (CustomerRow) TableName() string { return "customers" }

// UserRow is a row of users.
type UserRow struct {
	ID           string     `gorm:"column:id;primaryKey"`
	TenantID     string     `gorm:"column:tenant_id;not null;index"`
	Name         string     `gorm:"column:name"`
	Username     string     `gorm:"column:username;index"`
	Role         string     `gorm:"column:role"`
	PasswordHash string     `gorm:"column:password_hash"`
	Photo        *string    `gorm:"column:photo;type:text"`
	Specialty    string     `gorm:"column:specialty"`
	UpdatedAt    *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (UserRow) TableName() string { return "users" }

// CloudDataRow holds per-tenant blobs keyed by store_key; settings live under "settings".
type CloudDataRow struct {
	TenantID  string     `gorm:"column:tenant_id;primaryKey"`
	StoreKey  string     `gorm:"column:store_key;primaryKey"`
	DataJSON  string     `gorm:"column:data_json;type:text;not null"`
	UpdatedAt *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (CloudDataRow) TableName() string { return "cloud_data" }

// tableModels lists every remote table for AutoMigrate and deletes.
func tableModels() []any {
	return []any{
		&ServiceOrderRow{},
		&ProductRow{},
		&SaleRow{},
		&TransactionRow{},
		&CustomerRow{},
		&UserRow{},
		&CloudDataRow{},
	}
}

// rowModel returns the table struct of a row-per-record entity.
func rowModel(entity models.EntityType) any {
	switch entity {
	case models.EntityOrders:
		return &ServiceOrderRow{}
	case models.EntityProducts:
		return &ProductRow{}
	case models.EntitySales:
		return &SaleRow{}
	case models.EntityTransactions:
		return &TransactionRow{}
	case models.EntityCustomers:
		return &CustomerRow{}
	case models.EntityUsers:
		return &UserRow{}
	default:
		return nil
	}
}
