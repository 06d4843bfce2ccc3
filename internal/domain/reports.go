package domain

// Health and market position labels used by the reports.
const (
	HealthGood           = "good"
	HealthNeedsAttention = "needs_attention"

	PositionDiscount = "discount"
	PositionMarket   = "market"
	PositionPremium  = "premium"

	CompetitivenessCompetitive = "competitive"
)

// StoreQualityStats are per-store aggregates over the staging store.
type StoreQualityStats struct {
	StoreName         string
	TotalTransactions int64
	NullSales         int64
	ZeroSales         int64
	NegativeValues    int64
	AvgUnitPrice      *float64
	PriceVolatility   *float64
}

// SupplierQualityStats are per-supplier aggregates over the staging store.
type SupplierQualityStats struct {
	Supplier          string
	TotalTransactions int64
	StoreCoverage     int64
	NullSales         int64
	ZeroSales         int64
	MissingRRP        int64
}

// PromoGroupStats splits the units of one product/section into promoted and
// baseline sales. A sale at exactly 90% of RRP counts towards both.
type PromoGroupStats struct {
	Description       string
	Section           string
	PromoUnits        int64
	BaselineUnits     int64
	PromoTransactions int64
}

// SegmentPrice compares one target supplier against its competitors within a
// store, sub-department and section.
type SegmentPrice struct {
	Supplier           string
	StoreName          string
	SubDepartment      string
	Section            string
	SupplierAvgPrice   float64
	CompetitorAvgPrice float64
}

// StoreQualityDetails explains why a store is considered unreliable.
type StoreQualityDetails struct {
	TotalTransactions int64    `json:"total_transactions"`
	NullSales         int64    `json:"null_sales"`
	ZeroSales         int64    `json:"zero_sales"`
	NegativeValues    int64    `json:"negative_values"`
	AvgUnitPrice      *float64 `json:"avg_unit_price,omitempty"`
	PriceVolatility   *float64 `json:"price_volatility,omitempty"`
	Issues            []string `json:"issues"`
}

// StoreQualityIssue is an unreliable store entry.
type StoreQualityIssue struct {
	StoreName string              `json:"store_name"`
	IssueType string              `json:"issue_type"`
	Details   StoreQualityDetails `json:"details"`
}

// SupplierQualityDetails explains why a supplier is considered unreliable.
type SupplierQualityDetails struct {
	TotalTransactions int64    `json:"total_transactions"`
	StoreCoverage     int64    `json:"store_coverage"`
	ZeroSales         int64    `json:"zero_sales"`
	MissingRRP        int64    `json:"missing_rrp"`
	Issues            []string `json:"issues"`
}

// SupplierQualityIssue is an unreliable supplier entry.
type SupplierQualityIssue struct {
	Supplier  string                 `json:"supplier"`
	IssueType string                 `json:"issue_type"`
	Details   SupplierQualityDetails `json:"details"`
}

// QualitySummary aggregates the quality report.
type QualitySummary struct {
	TotalStoresAnalyzed      int     `json:"total_stores_analyzed"`
	TotalSuppliersAnalyzed   int     `json:"total_suppliers_analyzed"`
	UnreliableStoresCount    int     `json:"unreliable_stores_count"`
	UnreliableStoresPct      float64 `json:"unreliable_stores_pct"`
	UnreliableSuppliersCount int     `json:"unreliable_suppliers_count"`
	UnreliableSuppliersPct   float64 `json:"unreliable_suppliers_pct"`
	OverallStoreHealth       string  `json:"overall_store_health"`
	OverallSupplierHealth    string  `json:"overall_supplier_health"`
}

// QualityReport lists unreliable stores and suppliers.
type QualityReport struct {
	UnreliableStores    []StoreQualityIssue    `json:"unreliable_stores"`
	UnreliableSuppliers []SupplierQualityIssue `json:"unreliable_suppliers"`
	Summary             QualitySummary         `json:"summary"`
}

// PromoUplift is the uplift of one product within a section.
type PromoUplift struct {
	ProductName            string  `json:"product_name"`
	Section                string  `json:"section"`
	PromoUnits             int64   `json:"promo_units"`
	BaselineUnits          int64   `json:"baseline_units"`
	UpliftPct              float64 `json:"uplift_pct"`
	TotalPromoTransactions int64   `json:"total_promo_transactions"`
}

// PromotionSummary aggregates the promotion report.
type PromotionSummary struct {
	TotalPromotedProducts int     `json:"total_promoted_products"`
	TotalPromoUnits       int64   `json:"total_promo_units"`
	TotalBaselineUnits    int64   `json:"total_baseline_units"`
	OverallUpliftUnitPct  float64 `json:"overall_uplift_unit_pct"`
	AverageUpliftPct      float64 `json:"average_uplift_pct"`
	PositiveUpliftCount   int     `json:"positive_uplift_count"`
	NegativeUpliftCount   int     `json:"negative_uplift_count"`
}

// PromotionReport lists best and worst promotion performers for a supplier.
type PromotionReport struct {
	Summary        PromotionSummary `json:"summary"`
	TopPerformers  []PromoUplift    `json:"top_performers"`
	PoorPerformers []PromoUplift    `json:"poor_performers"`
}

// PriceIndex positions a supplier against competitors in one store segment.
type PriceIndex struct {
	StoreName          string  `json:"store_name"`
	SubDepartment      string  `json:"sub_department"`
	Section            string  `json:"section"`
	SupplierAvgPrice   float64 `json:"supplier_avg_price"`
	CompetitorAvgPrice float64 `json:"competitor_avg_price"`
	PriceIndex         float64 `json:"price_index"`
	MarketPosition     string  `json:"market_position"`
}

// PricingSummary aggregates the pricing report.
type PricingSummary struct {
	Supplier             string  `json:"supplier"`
	TotalStoreSegments   int     `json:"total_store_segments"`
	AveragePriceIndex    float64 `json:"average_price_index"`
	PremiumPositions     int     `json:"premium_positions"`
	MarketPositions      int     `json:"market_positions"`
	DiscountPositions    int     `json:"discount_positions"`
	PriceCompetitiveness string  `json:"price_competitiveness"`
}

// PricingReport lists price indices for a supplier across store segments.
type PricingReport struct {
	SupplierPricing []PriceIndex   `json:"supplier_pricing"`
	Summary         PricingSummary `json:"summary"`
}
