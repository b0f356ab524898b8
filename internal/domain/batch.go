package domain

import "time"

// Batch is a production lot of one product with its tracked stock.
// Qty is the on-hand quantity; SentQty accumulates everything dispatched.
type Batch struct {
	ID          string    `bson:"_id" json:"id" db:"id"`
	ProductID   string    `bson:"productId" json:"productId" db:"product_id"`
	BatchNumber string    `bson:"batchNumber" json:"batchNumber" db:"batch_number"`
	GTIN        string    `bson:"gtin,omitempty" json:"gtin,omitempty" db:"gtin"`
	Qty         int64     `bson:"qty" json:"qty" db:"qty"`
	SentQty     int64     `bson:"sentQty" json:"sentQty" db:"sent_qty"`
	ExpiresAt   time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt" db:"updated_at"`
}

// NewBatch creates a batch with an opening quantity
func NewBatch(id, productID, batchNumber string, qty int64) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:          id,
		ProductID:   productID,
		BatchNumber: batchNumber,
		Qty:         qty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanCover reports whether the on-hand quantity covers n units
func (b *Batch) CanCover(n int64) bool {
	return n > 0 && b.Qty >= n
}

// Actor is a user or organization that performs lifecycle actions.
type Actor struct {
	ID             string `bson:"_id" json:"id"`
	Name           string `bson:"name" json:"name"`
	OrganizationID string `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	GLN            string `bson:"gln,omitempty" json:"gln,omitempty"`
	Role           string `bson:"role,omitempty" json:"role,omitempty"`
}

// PartyType identifies which registry a company prefix was resolved from
type PartyType string

const (
	PartyTypeSupplier          PartyType = "SUPPLIER"
	PartyTypeLogisticsProvider PartyType = "LOGISTICS_PROVIDER"
)

// CompanyInfo is the owner of a GS1 company prefix.
type CompanyInfo struct {
	Prefix   string    `bson:"prefix" json:"prefix"`
	EntityID string    `bson:"entityId" json:"entityId"`
	Name     string    `bson:"name" json:"name"`
	Type     PartyType `bson:"type" json:"type"`
	GLN      string    `bson:"gln,omitempty" json:"gln,omitempty"`
	Country  string    `bson:"country,omitempty" json:"country,omitempty"`
}
