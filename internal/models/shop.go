package models

// Service order statuses.
const (
	OrderStatusPending   = "Pendente"
	OrderStatusDone      = "Concluído"
	OrderStatusDelivered = "Entregue"
)

// ServiceOrder is a repair job for a customer's device.
type ServiceOrder struct {
	ID             string   `json:"id"`
	TenantID       string   `json:"tenantId,omitempty"`
	CustomerID     string   `json:"customerId,omitempty"`
	Date           string   `json:"date"`
	EntryDate      string   `json:"entryDate"`
	ExitDate       string   `json:"exitDate"`
	CustomerName   string   `json:"customerName"`
	PhoneNumber    string   `json:"phoneNumber"`
	Address        string   `json:"address"`
	DeviceBrand    string   `json:"deviceBrand"`
	DeviceModel    string   `json:"deviceModel"`
	Defect         string   `json:"defect"`
	RepairDetails  string   `json:"repairDetails"`
	PartsCost      float64  `json:"partsCost"`
	ServiceCost    float64  `json:"serviceCost"`
	Total          float64  `json:"total"`
	Status         string   `json:"status"`
	Photos         []string `json:"photos"`
	FinishedPhotos []string `json:"finishedPhotos,omitempty"`
	IsDeleted      bool     `json:"isDeleted"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

// Product is an inventory item.
type Product struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenantId,omitempty"`
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode,omitempty"`
	Photo     *string `json:"photo"`
	CostPrice float64 `json:"costPrice"`
	SalePrice float64 `json:"salePrice"`
	Quantity  float64 `json:"quantity"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// Sale records one product sold at the counter.
type Sale struct {
	ID                 string  `json:"id"`
	TenantID           string  `json:"tenantId,omitempty"`
	ProductID          string  `json:"productId"`
	ProductName        string  `json:"productName"`
	Date               string  `json:"date"`
	Quantity           float64 `json:"quantity"`
	OriginalPrice      float64 `json:"originalPrice"`
	Discount           float64 `json:"discount"`
	Surcharge          float64 `json:"surcharge,omitempty"`
	FinalPrice         float64 `json:"finalPrice"`
	CostAtSale         float64 `json:"costAtSale"`
	PaymentMethod      string  `json:"paymentMethod,omitempty"`
	PaymentEntriesJSON string  `json:"paymentEntriesJson,omitempty"`
	Change             float64 `json:"change,omitempty"`
	SellerName         string  `json:"sellerName,omitempty"`
	TransactionID      string  `json:"transactionId,omitempty"`
	IsDeleted          bool    `json:"isDeleted"`
	UpdatedAt          string  `json:"updatedAt,omitempty"`
}

// Transaction kinds.
const (
	TransactionIn  = "entrada"
	TransactionOut = "saida"
)

// Transaction is a cash-flow entry.
type Transaction struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenantId,omitempty"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Category      string  `json:"category,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	IsDeleted     bool    `json:"isDeleted"`
	UpdatedAt     string  `json:"updatedAt,omitempty"`
}

// Customer is a shop client, referenced by service orders.
type Customer struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	Document    string `json:"document,omitempty"`
	Email       string `json:"email,omitempty"`
	Notes       string `json:"notes,omitempty"`
	IsDeleted   bool   `json:"isDeleted"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// User roles.
const (
	RoleAdmin        = "admin"
	RoleCollaborator = "colaborador"
)

// User is a shop operator.
type User struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenantId,omitempty"`
	Name         string  `json:"name"`
	Username     string  `json:"username,omitempty"`
	Role         string  `json:"role"`
	PasswordHash string  `json:"passwordHash,omitempty"`
	Photo        *string `json:"photo"`
	Specialty    string  `json:"specialty,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// Settings is the per-tenant store configuration singleton.
type Settings struct {
	ID                         string  `json:"id"`
	TenantID                   string  `json:"tenantId,omitempty"`
	StoreName                  string  `json:"storeName"`
	StoreAddress               string  `json:"storeAddress,omitempty"`
	StorePhone                 string  `json:"storePhone,omitempty"`
	LogoURL                    *string `json:"logoUrl"`
	IsConfigured               bool    `json:"isConfigured"`
	ThemePrimary               string  `json:"themePrimary,omitempty"`
	ThemeSidebar               string  `json:"themeSidebar,omitempty"`
	ThemeBg                    string  `json:"themeBg,omitempty"`
	ThemeBottomTab             string  `json:"themeBottomTab,omitempty"`
	PDFWarrantyText            string  `json:"pdfWarrantyText,omitempty"`
	PDFFontSize                float64 `json:"pdfFontSize,omitempty"`
	PDFFontFamily              string  `json:"pdfFontFamily,omitempty"`
	PDFPaperWidth              float64 `json:"pdfPaperWidth,omitempty"`
	PDFTextColor               string  `json:"pdfTextColor,omitempty"`
	PDFBgColor                 string  `json:"pdfBgColor,omitempty"`
	PrinterSize                int     `json:"printerSize,omitempty"`
	RetentionMonths            int     `json:"retentionMonths,omitempty"`
	ItemsPerPage               int     `json:"itemsPerPage,omitempty"`
	StockLayout                string  `json:"stockLayout,omitempty"`
	SalesLayout                string  `json:"salesLayout,omitempty"`
	OSLayout                   string  `json:"osLayout,omitempty"`
	ReceiptHeaderSubtitle      string  `json:"receiptHeaderSubtitle,omitempty"`
	ReceiptLabelProtocol       string  `json:"receiptLabelProtocol,omitempty"`
	ReceiptLabelDate           string  `json:"receiptLabelDate,omitempty"`
	ReceiptLabelClientSection  string  `json:"receiptLabelClientSection,omitempty"`
	ReceiptLabelClientName     string  `json:"receiptLabelClientName,omitempty"`
	ReceiptLabelClientPhone    string  `json:"receiptLabelClientPhone,omitempty"`
	ReceiptLabelClientAddress  string  `json:"receiptLabelClientAddress,omitempty"`
	ReceiptLabelServiceSection string  `json:"receiptLabelServiceSection,omitempty"`
	ReceiptLabelDevice         string  `json:"receiptLabelDevice,omitempty"`
	ReceiptLabelDefect         string  `json:"receiptLabelDefect,omitempty"`
	ReceiptLabelRepair         string  `json:"receiptLabelRepair,omitempty"`
	ReceiptLabelTotal          string  `json:"receiptLabelTotal,omitempty"`
	ReceiptLabelEntryPhotos    string  `json:"receiptLabelEntryPhotos,omitempty"`
	ReceiptLabelExitPhotos     string  `json:"receiptLabelExitPhotos,omitempty"`
	UpdatedAt                  string  `json:"updatedAt,omitempty"`

	// Users is filled from the users collection on read and never persisted here.
	Users []User `json:"users,omitempty"`
}

// SettingsUsersField is the local-only users view inside settings.
const SettingsUsersField = "users"
