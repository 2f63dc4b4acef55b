package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/internal/money"
)

// Repository defines catalog lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	SearchByName(ctx context.Context, query string, limit int) ([]Product, error)
	SearchByCategory(ctx context.Context, category string, limit int) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	CheckAvailability(ctx context.Context, id string, quantity int) (*Availability, error)
}

// PostgresRepository reads the product catalog from Postgres.
type PostgresRepository struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewPostgresRepository initializes a repo backed by a pgx querier.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	if db == nil {
		panic("products: pgx querier required")
	}
	return &PostgresRepository{db: db, tracer: otel.Tracer("pharmacy.internal.products")}
}

const productColumns = `product_id, name, category, price::text, stock_quantity,
	requires_prescription, description, manufacturer`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.StockQuantity,
		&p.RequiresPrescription, &p.Description, &p.Manufacturer); err != nil {
		return Product{}, err
	}
	parsed, err := money.Parse(price)
	if err != nil {
		return Product{}, err
	}
	p.Price = parsed
	return p, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID fetches a single product.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, span := r.tracer.Start(ctx, "products.get_by_id")
	defer span.End()

	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("products: get by id: %w", err)
	}
	return &p, nil
}

// SearchByName matches name or description case-insensitively, in-stock items first.
func (r *PostgresRepository) SearchByName(ctx context.Context, query string, limit int) ([]Product, error) {
	ctx, span := r.tracer.Start(ctx, "products.search_by_name")
	defer span.End()

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	out, err := r.list(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE $1 OR description ILIKE $1
		ORDER BY (stock_quantity > 0) DESC, name ASC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("products: search by name: %w", err)
	}
	return out, nil
}

// SearchByCategory lists products in a category, in-stock items first.
func (r *PostgresRepository) SearchByCategory(ctx context.Context, category string, limit int) ([]Product, error) {
	ctx, span := r.tracer.Start(ctx, "products.search_by_category")
	defer span.End()

	out, err := r.list(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category ILIKE $1
		ORDER BY (stock_quantity > 0) DESC, name ASC
		LIMIT $2
	`, strings.TrimSpace(category), limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("products: search by category: %w", err)
	}
	return out, nil
}

// ListCategories returns the distinct catalog categories.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "products.list_categories")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("products: list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("products: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CheckAvailability reports whether quantity units of the product are in stock.
func (r *PostgresRepository) CheckAvailability(ctx context.Context, id string, quantity int) (*Availability, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Available: p.StockQuantity >= quantity,
		InStock:   p.StockQuantity,
		Requested: quantity,
		Product:   p,
	}, nil
}

// ReserveStock takes quantity units out of stock and returns the product as it
// stands afterwards. Stock never goes negative.
func (r *PostgresRepository) ReserveStock(ctx context.Context, id string, quantity int) (*Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	ctx, span := r.tracer.Start(ctx, "products.reserve_stock")
	defer span.End()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE product_id = $1 AND stock_quantity >= $2
		RETURNING `+productColumns, id, quantity))
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return nil, fmt.Errorf("products: reserve stock: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientStock
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
