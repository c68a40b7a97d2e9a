package domain

import "time"

// JSON field names are camelCase to stay byte-compatible with the backup
// document format produced by earlier releases (itemId, cashUsed, ...).

type Item struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Brand            string    `json:"brand"`
	Category         string    `json:"category"`
	WeightLbs        float64   `json:"weightLbs"`
	CostPreShipping  float64   `json:"costPreShipping"`
	CostPostShipping float64   `json:"costPostShipping"`
	MinPrice         float64   `json:"minPrice"`
	MaxPrice         float64   `json:"maxPrice"`
	MinProfit        float64   `json:"minProfit"`
	MaxProfit        float64   `json:"maxProfit"`
	Stock            int       `json:"stock"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type ItemCreateRequest struct {
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Category  string  `json:"category"`
	WeightLbs float64 `json:"weightLbs"`
	UnitCost  float64 `json:"unitCost"`
	Stock     int     `json:"stock"`
}

type ItemUpdateRequest struct {
	Name      *string  `json:"name,omitempty"`
	Brand     *string  `json:"brand,omitempty"`
	Category  *string  `json:"category,omitempty"`
	WeightLbs *float64 `json:"weightLbs,omitempty"`
	Stock     *int     `json:"stock,omitempty"`
}

// PurchaseLine is one ordered line within a purchase. The perUnit* fields and
// unitCostPostShipping are derived: they are written only by the allocation
// engine and overwritten on every recompute.
type PurchaseLine struct {
	ItemID      string  `json:"itemId"`
	Quantity    int     `json:"quantity"`
	UnitCost    float64 `json:"unitCost"`
	HasSubItems bool    `json:"hasSubItems"`
	SubItemsQty int     `json:"subItemsQty"`

	PerUnitTax           float64 `json:"perUnitTax"`
	PerUnitShippingUS    float64 `json:"perUnitShippingUS"`
	PerUnitShippingIntl  float64 `json:"perUnitShippingIntl"`
	UnitCostPostShipping float64 `json:"unitCostPostShipping"`
}

type Purchase struct {
	ID            string         `json:"id"`
	Supplier      string         `json:"supplier"`
	Lines         []PurchaseLine `json:"lines"`
	Subtotal      float64        `json:"subtotal"`
	Tax           float64        `json:"tax"`
	ShippingUS    float64        `json:"shippingUS"`
	ShippingIntl  float64        `json:"shippingIntl"`
	WeightLbs     float64        `json:"weightLbs"`
	TotalUnits    int            `json:"totalUnits"`
	TotalCost     float64        `json:"totalCost"`
	CashUsed      float64        `json:"cashUsed"`
	PaymentSource string         `json:"paymentSource"`
	Notes         string         `json:"notes"`
	PurchasedAt   time.Time      `json:"purchasedAt"`
}

// PurchaseDraftLine carries the caller-editable half of a line. Derived
// fields are never accepted from the outside.
type PurchaseDraftLine struct {
	ItemID      string  `json:"itemId"`
	Quantity    int     `json:"quantity"`
	UnitCost    float64 `json:"unitCost"`
	HasSubItems bool    `json:"hasSubItems"`
	SubItemsQty int     `json:"subItemsQty"`
}

// PurchaseCreateRequest uses pointer fields for the footer totals: nil means
// "derive for me" (subtotal from lines, tax from the configured rate, intl
// shipping from weight), a non-nil value is a manual override.
type PurchaseCreateRequest struct {
	Supplier     string              `json:"supplier"`
	Lines        []PurchaseDraftLine `json:"lines"`
	Subtotal     *float64            `json:"subtotal,omitempty"`
	Tax          *float64            `json:"tax,omitempty"`
	ShippingUS   float64             `json:"shippingUS"`
	ShippingIntl *float64            `json:"shippingIntl,omitempty"`
	WeightLbs    float64             `json:"weightLbs"`
	CashToUse    float64             `json:"cashToUse"`
	Reason       string              `json:"reason"`
	Notes        string              `json:"notes"`
}

type PurchaseResponse struct {
	Purchase   Purchase         `json:"purchase"`
	Withdrawal *CashWithdrawal  `json:"withdrawal,omitempty"`
	Breakdown  PaymentBreakdown `json:"breakdown"`
}

type Sale struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"itemId"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	TotalAmount float64   `json:"totalAmount"`
	Notes       string    `json:"notes"`
	SoldAt      time.Time `json:"soldAt"`
}

type SaleCreateRequest struct {
	ItemID    string  `json:"itemId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Notes     string  `json:"notes"`
}

type Transaction struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Amount         float64   `json:"amount"`
	PaymentSource  string    `json:"paymentSource"`
	CashAmount     float64   `json:"cashAmount"`
	ExternalAmount float64   `json:"externalAmount"`
	Description    string    `json:"description"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type TransactionCreateRequest struct {
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	PaymentSource  string  `json:"paymentSource"`
	CashAmount     float64 `json:"cashAmount"`
	ExternalAmount float64 `json:"externalAmount"`
	Description    string  `json:"description"`
}

type TransactionResponse struct {
	Transaction Transaction     `json:"transaction"`
	Withdrawal  *CashWithdrawal `json:"withdrawal,omitempty"`
}

// CashWithdrawal is immutable once created. A reason prefixed "Transaction:"
// marks a transaction-originated withdrawal for reporting; it is not a
// separate type.
type CashWithdrawal struct {
	ID               string    `json:"id"`
	Amount           float64   `json:"amount"`
	Reason           string    `json:"reason"`
	LinkedPurchaseID string    `json:"linkedPurchaseId,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	WithdrawnAt      time.Time `json:"withdrawnAt"`
}

type WithdrawalCreateRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
	Notes  string  `json:"notes"`
}

type PaymentBreakdown struct {
	CashUsed        float64 `json:"cashUsed"`
	ExternalPayment float64 `json:"externalPayment"`
	PaymentSource   string  `json:"paymentSource"`
}

type CashSummary struct {
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalIncome    float64 `json:"totalIncome"`
	TotalWithdrawn float64 `json:"totalWithdrawn"`
	AvailableCash  float64 `json:"availableCash"`
}

type Settings struct {
	WeightCostPerLb float64   `json:"weightCostPerLb"`
	TaxRatePercent  float64   `json:"taxRatePercent"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type SettingsUpdateRequest struct {
	WeightCostPerLb *float64 `json:"weightCostPerLb,omitempty"`
	TaxRatePercent  *float64 `json:"taxRatePercent,omitempty"`
}

// Dataset is the full snapshot persisted as a single JSON document by the
// backup export/import endpoints.
type Dataset struct {
	Items           []Item           `json:"items"`
	Purchases       []Purchase       `json:"purchases"`
	Sales           []Sale           `json:"sales"`
	Transactions    []Transaction    `json:"transactions"`
	CashWithdrawals []CashWithdrawal `json:"cashWithdrawals"`
	Settings        Settings         `json:"settings"`
}

type RecalculateResponse struct {
	PurchasesRecalculated int    `json:"purchasesRecalculated"`
	ItemsUpdated          int    `json:"itemsUpdated"`
	CompletedAt           string `json:"completedAt"`
}

type AnalyticsSummary struct {
	TotalRevenue       float64 `json:"totalRevenue"`
	TotalIncome        float64 `json:"totalIncome"`
	TotalExpenses      float64 `json:"totalExpenses"`
	TotalWithdrawn     float64 `json:"totalWithdrawn"`
	TotalPurchaseCost  float64 `json:"totalPurchaseCost"`
	AvailableCash      float64 `json:"availableCash"`
	InventoryValuation float64 `json:"inventoryValuation"`
	PotentialProfitMin float64 `json:"potentialProfitMin"`
	PotentialProfitMax float64 `json:"potentialProfitMax"`
	GeneratedAt        string  `json:"generatedAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actorUsername"`
	ActorRole     string    `json:"actorRole"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entityType"`
	EntityID      string    `json:"entityId"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"createdAt"`
}

const (
	PaymentSourceExternal = "external"
	// PaymentSourceRevenue is the stored-document name for fully cash-funded
	// records; conceptually "cash", kept for backward compatibility.
	PaymentSourceRevenue = "revenue"
	PaymentSourceMixed   = "mixed"
)

const (
	TransactionExpense  = "expense"
	TransactionFee      = "fee"
	TransactionIncome   = "income"
	TransactionDiscount = "discount"
)

// TransactionReasonPrefix marks withdrawals created by transaction
// processing in the withdrawal history.
const TransactionReasonPrefix = "Transaction:"

func IsValidTransactionType(t string) bool {
	switch t {
	case TransactionExpense, TransactionFee, TransactionIncome, TransactionDiscount:
		return true
	default:
		return false
	}
}

func IsValidPaymentSource(s string) bool {
	switch s {
	case PaymentSourceExternal, PaymentSourceRevenue, PaymentSourceMixed:
		return true
	default:
		return false
	}
}

// ConsumesCash reports whether a transaction type can draw on business cash.
// Income and discount records never consume cash.
func ConsumesCash(transactionType string) bool {
	return transactionType == TransactionExpense || transactionType == TransactionFee
}
