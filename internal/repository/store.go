package repository

import "github.com/rpattn/retailanalytics/internal/db"

type postgresStore struct {
	StagingRepository
	PromotionRepository
	SalesRepository
	ValidationErrorRepository
	ReportRepository

	conn *db.Connection
}

// NewPostgresStore composes the pgx repositories over one connection pool.
// Closing the store closes the pool.
func NewPostgresStore(conn *db.Connection) Store {
	return &postgresStore{
		StagingRepository:         NewStagingRepository(conn),
		PromotionRepository:       NewPromotionRepository(conn),
		SalesRepository:           NewSalesRepository(conn),
		ValidationErrorRepository: NewValidationErrorRepository(conn),
		ReportRepository:          NewReportRepository(conn),
		conn:                      conn,
	}
}

func (s *postgresStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
