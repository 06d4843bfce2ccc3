package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/domain"
)

const defaultValidationErrorLimit = 200

type validationErrorRepository struct {
	conn *db.Connection
}

// NewValidationErrorRepository wires a repository backed by pgxpool.
func NewValidationErrorRepository(conn *db.Connection) ValidationErrorRepository {
	return &validationErrorRepository{conn: conn}
}

func (r *validationErrorRepository) ListValidationErrors(ctx context.Context, filter domain.ValidationErrorFilter) ([]domain.ValidationError, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return nil, fmt.Errorf("validation error repository not initialized")
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)

	query := ListValidationErrorsSQL(filter.RowID != nil)
	args := []any{limit, offset}
	if filter.RowID != nil {
		args = append([]any{*filter.RowID}, args...)
	}

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation errors: %w", err)
	}
	defer rows.Close()

	records := []domain.ValidationError{}
	for rows.Next() {
		var record domain.ValidationError
		if scanErr := rows.Scan(ValidationErrorScanTargets(&record)...); scanErr != nil {
			return nil, fmt.Errorf("failed to scan validation error: %w", scanErr)
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate validation errors: %w", rowsErr)
	}

	return records, nil
}

func (r *validationErrorRepository) ValidationMessages(ctx context.Context) ([]string, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return nil, fmt.Errorf("validation error repository not initialized")
	}

	rows, err := r.conn.Pool.Query(ctx, SelectValidationMessagesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation messages: %w", err)
	}
	defer rows.Close()

	messages := []string{}
	for rows.Next() {
		var message string
		if scanErr := rows.Scan(&message); scanErr != nil {
			return nil, fmt.Errorf("failed to scan validation message: %w", scanErr)
		}
		messages = append(messages, message)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate validation messages: %w", rowsErr)
	}

	return messages, nil
}

// ValidationErrorScanTargets matches the column order of validation error listings.
func ValidationErrorScanTargets(record *domain.ValidationError) []any {
	return []any{
		&record.ID, &record.RowID, &record.Hash, &record.FieldName,
		&record.CellValue, &record.Message, &record.Note, &record.CreatedAt,
	}
}

// NormalizePage applies the default page size and clamps negative offsets.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultValidationErrorLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
