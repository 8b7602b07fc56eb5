package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/touripk/support-desk/internal/domain"
)

// CompanyRepository reads tour companies tickets are raised against.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Company, error)
}

type companyRepository struct {
	db DBTX
}

// NewCompanyRepository builds the repository.
func NewCompanyRepository(db DBTX) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	const query = `
        SELECT id, owner_id, name, email, approval_status, is_active, created_at, updated_at
        FROM companies WHERE id=$1`
	return scanCompany(r.db.QueryRow(ctx, query, id))
}

func (r *companyRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Company, error) {
	const query = `
        SELECT id, owner_id, name, email, approval_status, is_active, created_at, updated_at
        FROM companies WHERE owner_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *company)
	}
	return result, rows.Err()
}

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var company domain.Company
	if err := row.Scan(
		&company.ID,
		&company.OwnerID,
		&company.Name,
		&company.Email,
		&company.ApprovalStatus,
		&company.IsActive,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &company, nil
}
