package repository

// SQL shared by the Postgres and DuckDB stores. Both dialects accept $n
// placeholders, FILTER clauses, STDDEV_SAMP and STRPOS, so the aggregation
// text is written once.

// StagingColumns is the column order used for staging inserts and scans.
var StagingColumns = []string{
	"id", "batch_id", "hash",
	"store_name", "item_code", "item_barcode", "supplier", "description",
	"category", "department", "sub_department", "section",
	"quantity", "total_sales", "rrp", "date_of_sale", "ingested_at",
}

const (
	SelectStagingBatchSQL = `
		SELECT id, batch_id, hash,
		       store_name, item_code, item_barcode, supplier, description,
		       category, department, sub_department, section,
		       quantity, total_sales, rrp, date_of_sale, ingested_at
		FROM staging_sales
		WHERE batch_id = $1
		ORDER BY id`

	InsertSaleSQL = `
		INSERT INTO sales (
			id, hash, store_name, item_code, item_barcode, supplier, description,
			category, department, sub_department, section,
			quantity, total_sales, rrp, sale_price, margin, date_of_sale
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (hash) DO NOTHING`

	InsertValidationErrorSQL = `
		INSERT INTO validation_errors (id, row_id, hash, field_name, cell_value, message, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	SelectSaleByHashSQL = `
		SELECT id, hash, store_name, item_code, item_barcode, supplier, description,
		       category, department, sub_department, section,
		       quantity, total_sales, rrp, sale_price, margin, date_of_sale
		FROM sales
		WHERE hash = $1`

	CountSalesSQL = `SELECT COUNT(*) FROM sales`

	selectValidationErrorsSQL = `
		SELECT id, row_id, hash, field_name, cell_value, message, note, created_at
		FROM validation_errors`

	SelectValidationMessagesSQL = `
		SELECT message
		FROM validation_errors
		ORDER BY created_at, id`

	// Staging keeps absent text as ''. Blank stores and suppliers are not
	// entities of their own and are left out of the quality aggregates.
	StoreQualitySQL = `
		SELECT
			store_name,
			COUNT(*) AS total_transactions,
			COUNT(*) FILTER (WHERE quantity IS NULL OR total_sales IS NULL) AS null_sales,
			COUNT(*) FILTER (WHERE quantity = 0 OR total_sales = 0) AS zero_sales,
			COUNT(*) FILTER (WHERE quantity < 0 OR total_sales < 0) AS negative_values,
			CAST(AVG(total_sales / NULLIF(quantity, 0)) AS FLOAT8) AS avg_unit_price,
			CAST(STDDEV_SAMP(total_sales / NULLIF(quantity, 0)) AS FLOAT8) AS price_volatility
		FROM staging_sales
		WHERE store_name <> ''
		GROUP BY store_name
		ORDER BY store_name`

	SupplierQualitySQL = `
		SELECT
			supplier,
			COUNT(*) AS total_transactions,
			COUNT(DISTINCT NULLIF(store_name, '')) AS store_coverage,
			COUNT(*) FILTER (WHERE quantity IS NULL OR total_sales IS NULL) AS null_sales,
			COUNT(*) FILTER (WHERE quantity IS NULL OR total_sales IS NULL OR quantity = 0 OR total_sales = 0) AS zero_sales,
			COUNT(*) FILTER (WHERE rrp IS NULL OR rrp = 0) AS missing_rrp
		FROM staging_sales
		WHERE supplier <> ''
		GROUP BY supplier
		ORDER BY supplier`

	// PromotionGroupsSQL splits units at 90% of RRP. A sale exactly at the
	// threshold counts as both promoted and baseline.
	PromotionGroupsSQL = `
		SELECT
			description,
			section,
			CAST(COALESCE(SUM(quantity) FILTER (WHERE sale_price <= rrp * 0.9), 0) AS BIGINT) AS promo_units,
			CAST(COALESCE(SUM(quantity) FILTER (WHERE sale_price >= rrp * 0.9), 0) AS BIGINT) AS baseline_units,
			COUNT(*) FILTER (WHERE sale_price <= rrp * 0.9) AS promo_transactions
		FROM sales
		WHERE STRPOS(LOWER(supplier), LOWER(CAST($1 AS TEXT))) > 0
		GROUP BY description, section
		ORDER BY description, section`

	SegmentPricesSQL = `
		WITH item_prices AS (
			SELECT store_name, sub_department, section, supplier,
			       AVG(total_sales / quantity) AS avg_unit_price
			FROM sales
			WHERE quantity > 0 AND total_sales > 0
			GROUP BY store_name, sub_department, section, supplier
		),
		competitor_prices AS (
			SELECT store_name, sub_department, section,
			       AVG(avg_unit_price) AS competitor_avg_price
			FROM item_prices
			WHERE STRPOS(LOWER(supplier), LOWER(CAST($1 AS TEXT))) = 0
			GROUP BY store_name, sub_department, section
		)
		SELECT ip.supplier, ip.store_name, ip.sub_department, ip.section,
		       CAST(ip.avg_unit_price AS FLOAT8) AS supplier_avg_price,
		       CAST(cp.competitor_avg_price AS FLOAT8) AS competitor_avg_price
		FROM item_prices ip
		JOIN competitor_prices cp
		  ON ip.store_name = cp.store_name
		 AND ip.sub_department = cp.sub_department
		 AND ip.section = cp.section
		WHERE STRPOS(LOWER(ip.supplier), LOWER(CAST($1 AS TEXT))) > 0
		ORDER BY ip.store_name, ip.sub_department, ip.section, ip.supplier`
)

// ListValidationErrorsSQL returns the paged listing query. With byRow the
// first parameter is the row id; limit and offset follow.
func ListValidationErrorsSQL(byRow bool) string {
	if byRow {
		return selectValidationErrorsSQL + `
		WHERE row_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`
	}
	return selectValidationErrorsSQL + `
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`
}
