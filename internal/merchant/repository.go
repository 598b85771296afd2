package merchant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/stmtsync/internal/dbx"
)

// PaymentRef points at a payments row still missing its sale detail.
type PaymentRef struct {
	ID            int64
	CompanyNumber string
	PaymentID     string
}

// SaleRef identifies one sale for the installments endpoint.
type SaleRef struct {
	NSU        string
	MerchantID string
	SaleDate   string
}

// Repository selects rows whose detail is missing or stale. Every selection
// reads the sink only, so an interrupted pass resumes where it stopped.
type Repository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewRepository(db dbx.DBTX, dialect dbx.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// PaymentsMissingDetail returns the payments of day whose nsu is still NULL.
func (r *Repository) PaymentsMissingDetail(ctx context.Context, day string) ([]PaymentRef, error) {
	query := r.dialect.Rebind(
		`SELECT id, parent_company_number, payment_id
           FROM payments
          WHERE payment_date = ? AND nsu IS NULL
          ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []PaymentRef
	for rows.Next() {
		var (
			ref              PaymentRef
			company, payment sql.NullString
		)
		if err := rows.Scan(&ref.ID, &company, &payment); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ref.CompanyNumber, ref.PaymentID = company.String, payment.String
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// SalesMissingInstallments returns sales paid in installments that have no
// installment rows yet. A non-empty from/to restricts them by sale date.
func (r *Repository) SalesMissingInstallments(ctx context.Context, from, to string) ([]SaleRef, error) {
	query := `SELECT DISTINCT s.nsu, s.company_number, s.sale_date
           FROM sales s
          WHERE s.installment_quantity <> 0
            AND s.nsu IS NOT NULL
            AND NOT EXISTS (
                SELECT 1 FROM installments i
                 WHERE i.nsu = s.nsu AND i.merchant_id = s.company_number)`

	var args []any
	if from != "" {
		query += ` AND s.sale_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND s.sale_date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY s.sale_date, s.nsu`

	return r.saleRefs(ctx, query, args...)
}

// InstallmentsPendingStatus returns the sales owning an installment that is
// neither paid nor anticipated.
func (r *Repository) InstallmentsPendingStatus(ctx context.Context) ([]SaleRef, error) {
	query := `SELECT DISTINCT nsu, merchant_id, sale_date
           FROM installments
          WHERE status NOT IN ('PAID', 'ANTICIPATED')
          ORDER BY sale_date, nsu`

	return r.saleRefs(ctx, query)
}

func (r *Repository) saleRefs(ctx context.Context, query string, args ...any) ([]SaleRef, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []SaleRef
	for rows.Next() {
		var nsu, merchant, date sql.NullString
		if err := rows.Scan(&nsu, &merchant, &date); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, SaleRef{NSU: nsu.String, MerchantID: merchant.String, SaleDate: date.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
