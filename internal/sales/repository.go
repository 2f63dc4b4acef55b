package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/internal/money"
)

// Repository reads and appends sales records. Records are never updated.
type Repository interface {
	Recent(ctx context.Context, customerID string, limit int) ([]Record, error)
	PrescriptionLines(ctx context.Context, customerID string, limit int) ([]PrescriptionLine, error)
	Insert(ctx context.Context, rec *Record) error
}

// PostgresRepository stores sales in Postgres.
type PostgresRepository struct {
	db     database.Querier
	tracer trace.Tracer
	now    func() time.Time
}

// NewPostgresRepository initializes a repo backed by a pgx querier.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	if db == nil {
		panic("sales: pgx querier required")
	}
	return &PostgresRepository{db: db, tracer: otel.Tracer("pharmacy.internal.sales"), now: time.Now}
}

// Recent returns the customer's latest sales, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, customerID string, limit int) ([]Record, error) {
	ctx, span := r.tracer.Start(ctx, "sales.recent")
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT s.sale_id, s.customer_id, s.product_id, COALESCE(p.name, ''), s.quantity,
			s.unit_price::text, s.total_amount::text, s.discount_applied::text,
			s.payment_method, s.sale_date, COALESCE(s.prescription_number, ''),
			s.prescription_date, s.refill_number, COALESCE(s.pharmacist_id, '')
		FROM sales_records s
		LEFT JOIN products p ON p.product_id = s.product_id
		WHERE s.customer_id = $1
		ORDER BY s.sale_date DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sales: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sales: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec                   Record
		unit, total, discount string
	)
	if err := row.Scan(&rec.ID, &rec.CustomerID, &rec.ProductID, &rec.ProductName, &rec.Quantity,
		&unit, &total, &discount,
		&rec.PaymentMethod, &rec.SaleDate, &rec.PrescriptionNumber,
		&rec.PrescriptionDate, &rec.RefillNumber, &rec.PharmacistID); err != nil {
		return Record{}, err
	}
	var err error
	if rec.UnitPrice, err = money.Parse(unit); err != nil {
		return Record{}, err
	}
	if rec.TotalAmount, err = money.Parse(total); err != nil {
		return Record{}, err
	}
	if rec.DiscountApplied, err = money.Parse(discount); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// PrescriptionLines returns distinct prescription lines for the customer, most recent first.
func (r *PostgresRepository) PrescriptionLines(ctx context.Context, customerID string, limit int) ([]PrescriptionLine, error) {
	ctx, span := r.tracer.Start(ctx, "sales.prescription_lines")
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT p.name, s.prescription_number, s.prescription_date, s.refill_number
		FROM sales_records s
		JOIN products p ON p.product_id = s.product_id
		WHERE s.customer_id = $1 AND s.prescription_number IS NOT NULL
		ORDER BY s.prescription_date DESC NULLS LAST
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sales: prescription lines: %w", err)
	}
	defer rows.Close()

	var out []PrescriptionLine
	for rows.Next() {
		var line PrescriptionLine
		if err := rows.Scan(&line.ProductName, &line.PrescriptionNumber, &line.PrescriptionDate, &line.RefillNumber); err != nil {
			return nil, fmt.Errorf("sales: scan prescription: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Insert appends a sale. ID and SaleDate are filled when empty.
func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.CustomerID) == "" || strings.TrimSpace(rec.ProductID) == "" || rec.Quantity <= 0 {
		return ErrInvalidRecord
	}
	ctx, span := r.tracer.Start(ctx, "sales.insert")
	defer span.End()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SaleDate.IsZero() {
		rec.SaleDate = r.now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO sales_records (
			sale_id, customer_id, product_id, quantity, unit_price, total_amount, discount_applied,
			payment_method, sale_date, prescription_number, prescription_date, refill_number, pharmacist_id
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, NULLIF($10, ''), $11, $12, NULLIF($13, ''))
	`, rec.ID, rec.CustomerID, rec.ProductID, rec.Quantity,
		rec.UnitPrice.String(), rec.TotalAmount.String(), rec.DiscountApplied.String(),
		rec.PaymentMethod, rec.SaleDate, rec.PrescriptionNumber, rec.PrescriptionDate, rec.RefillNumber, rec.PharmacistID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sales: insert: %w", err)
	}
	return nil
}
