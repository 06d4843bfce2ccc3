package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Column names of a sales transaction, in the order used for hashing and storage.
const (
	ColumnID            = "id"
	ColumnHash          = "hash"
	ColumnStoreName     = "store_name"
	ColumnItemCode      = "item_code"
	ColumnItemBarcode   = "item_barcode"
	ColumnSupplier      = "supplier"
	ColumnDescription   = "description"
	ColumnCategory      = "category"
	ColumnDepartment    = "department"
	ColumnSubDepartment = "sub_department"
	ColumnSection       = "section"
	ColumnQuantity      = "quantity"
	ColumnTotalSales    = "total_sales"
	ColumnRRP           = "rrp"
	ColumnDateOfSale    = "date_of_sale"
)

// SalesColumns lists the business columns of a transaction in canonical order.
var SalesColumns = []string{
	ColumnStoreName,
	ColumnItemCode,
	ColumnItemBarcode,
	ColumnSupplier,
	ColumnDescription,
	ColumnCategory,
	ColumnDepartment,
	ColumnSubDepartment,
	ColumnSection,
	ColumnQuantity,
	ColumnTotalSales,
	ColumnRRP,
	ColumnDateOfSale,
}

// ErrUndefinedSalePrice is returned when a sale price cannot be derived.
var ErrUndefinedSalePrice = errors.New("sale price is undefined for non-positive quantity")

// StagingRow is one ingested transaction before validation. Numeric and date
// columns are nullable; a nil value means the cell was absent.
type StagingRow struct {
	ID            uuid.UUID  `json:"id"`
	BatchID       uuid.UUID  `json:"batch_id"`
	Hash          string     `json:"hash"`
	StoreName     string     `json:"store_name"`
	ItemCode      string     `json:"item_code"`
	ItemBarcode   string     `json:"item_barcode"`
	Supplier      string     `json:"supplier"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Department    string     `json:"department"`
	SubDepartment string     `json:"sub_department"`
	Section       string     `json:"section"`
	Quantity      *int64     `json:"quantity"`
	TotalSales    *float64   `json:"total_sales"`
	RRP           *float64   `json:"rrp"`
	DateOfSale    *time.Time `json:"date_of_sale"`
	IngestedAt    time.Time  `json:"ingested_at"`
}

// Values returns the row as a column to value mapping. Absent cells map to nil.
func (r StagingRow) Values() map[string]any {
	values := map[string]any{
		ColumnID:            r.ID,
		ColumnHash:          r.Hash,
		ColumnStoreName:     r.StoreName,
		ColumnItemCode:      r.ItemCode,
		ColumnItemBarcode:   r.ItemBarcode,
		ColumnSupplier:      r.Supplier,
		ColumnDescription:   r.Description,
		ColumnCategory:      r.Category,
		ColumnDepartment:    r.Department,
		ColumnSubDepartment: r.SubDepartment,
		ColumnSection:       r.Section,
		ColumnQuantity:      nil,
		ColumnTotalSales:    nil,
		ColumnRRP:           nil,
		ColumnDateOfSale:    nil,
	}
	if r.ID == uuid.Nil {
		values[ColumnID] = nil
	}
	if r.Quantity != nil {
		values[ColumnQuantity] = *r.Quantity
	}
	if r.TotalSales != nil {
		values[ColumnTotalSales] = *r.TotalSales
	}
	if r.RRP != nil {
		values[ColumnRRP] = *r.RRP
	}
	if r.DateOfSale != nil {
		values[ColumnDateOfSale] = *r.DateOfSale
	}
	return values
}

// AnalyticRow is a validated transaction with derived pricing columns.
type AnalyticRow struct {
	ID            uuid.UUID `json:"id"`
	Hash          string    `json:"hash"`
	StoreName     string    `json:"store_name"`
	ItemCode      string    `json:"item_code"`
	ItemBarcode   string    `json:"item_barcode"`
	Supplier      string    `json:"supplier"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Department    string    `json:"department"`
	SubDepartment string    `json:"sub_department"`
	Section       string    `json:"section"`
	Quantity      int64     `json:"quantity"`
	TotalSales    float64   `json:"total_sales"`
	RRP           float64   `json:"rrp"`
	SalePrice     float64   `json:"sale_price"`
	Margin        float64   `json:"margin"`
	DateOfSale    time.Time `json:"date_of_sale"`
}

// NewAnalyticRow derives sale_price and margin from a staged row. The row must
// already have passed validation; missing numeric cells or a non-positive
// quantity are reported as errors rather than producing NaN or Inf.
func NewAnalyticRow(row StagingRow) (AnalyticRow, error) {
	if row.Quantity == nil || row.TotalSales == nil || row.RRP == nil || row.DateOfSale == nil {
		return AnalyticRow{}, errors.New("staged row is missing required numeric or date values")
	}
	if *row.Quantity <= 0 {
		return AnalyticRow{}, ErrUndefinedSalePrice
	}

	salePrice := *row.TotalSales / float64(*row.Quantity)
	return AnalyticRow{
		ID:            row.ID,
		Hash:          row.Hash,
		StoreName:     row.StoreName,
		ItemCode:      row.ItemCode,
		ItemBarcode:   row.ItemBarcode,
		Supplier:      row.Supplier,
		Description:   row.Description,
		Category:      row.Category,
		Department:    row.Department,
		SubDepartment: row.SubDepartment,
		Section:       row.Section,
		Quantity:      *row.Quantity,
		TotalSales:    *row.TotalSales,
		RRP:           *row.RRP,
		SalePrice:     salePrice,
		Margin:        salePrice - *row.RRP,
		DateOfSale:    *row.DateOfSale,
	}, nil
}
