package validator

import "github.com/rpattn/retailanalytics/internal/domain"

// Kind is the value type a column must hold.
type Kind int

const (
	KindAny Kind = iota
	KindText
	KindInteger
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "any"
	}
}

// Rule constrains one column. Checks run in order (required, type, range,
// date, uniqueness) and stop at the first violation for that column.
type Rule struct {
	Column   string
	Kind     Kind
	Required bool
	// Unique is enforced within one validated batch.
	Unique  bool
	Minimum *float64
	// Positive rejects zero, on top of Minimum.
	Positive bool
	// NotFuture rejects dates after the current date.
	NotFuture bool
}

func floatPtr(v float64) *float64 {
	return &v
}

// SalesRules is the fixed schema for point-of-sale transactions. Quantity must
// be strictly positive because sale_price is derived by dividing by it.
var SalesRules = []Rule{
	{Column: domain.ColumnID, Kind: KindAny, Required: true},
	{Column: domain.ColumnHash, Kind: KindText, Required: true, Unique: true},
	{Column: domain.ColumnStoreName, Kind: KindText, Required: true},
	{Column: domain.ColumnItemCode, Kind: KindText, Required: true},
	{Column: domain.ColumnItemBarcode, Kind: KindText, Required: true},
	{Column: domain.ColumnDescription, Kind: KindText, Required: true},
	{Column: domain.ColumnCategory, Kind: KindText, Required: true},
	{Column: domain.ColumnDepartment, Kind: KindText, Required: true},
	{Column: domain.ColumnSubDepartment, Kind: KindText, Required: true},
	{Column: domain.ColumnSection, Kind: KindText, Required: true},
	{Column: domain.ColumnQuantity, Kind: KindInteger, Required: true, Minimum: floatPtr(0), Positive: true},
	{Column: domain.ColumnTotalSales, Kind: KindNumber, Required: true, Minimum: floatPtr(0)},
	{Column: domain.ColumnRRP, Kind: KindNumber, Required: true, Minimum: floatPtr(0)},
	{Column: domain.ColumnSupplier, Kind: KindText, Required: true},
	{Column: domain.ColumnDateOfSale, Kind: KindDate, Required: true, NotFuture: true},
}
