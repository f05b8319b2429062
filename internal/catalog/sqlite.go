package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/fjod/storefront/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteCatalog is a local fixture catalog persisted in a SQLite file.
type SQLiteCatalog struct {
	db      *sql.DB
	perPage int
}

func NewSQLiteCatalog(dbPath string, perPage int) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; stock adjustments run in transactions.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	c := &SQLiteCatalog{db: db, perPage: perPage}
	if err := c.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

const productColumns = `id, name, description, price, stock, sku, image, category, rating, is_active, created_at, updated_at`

func (c *SQLiteCatalog) ListProducts(ctx context.Context, page int) (*Listing, error) {
	page = normalizePage(page)

	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id LIMIT ? OFFSET ?`,
		c.perPage, (page-1)*c.perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	items := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &Listing{
		Items:      items,
		Page:       page,
		TotalPages: totalPages(total, c.perPage),
		Total:      total,
	}, nil
}

func (c *SQLiteCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return c.getProduct(ctx, c.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *SQLiteCatalog) getProduct(ctx context.Context, q queryRower, id string) (*domain.Product, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, &domain.NotFoundError{Kind: "product", ID: id}
	}
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, rowID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "product", ID: id}
	}
	return p, err
}

func (c *SQLiteCatalog) CreateProduct(ctx context.Context, draft domain.ProductDraft) (*domain.Product, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	image := draft.Image
	if image == "" {
		image = domain.PlaceholderImage
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price, stock, sku, image, category, rating, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		draft.Name, draft.Description, draft.Price.StringFixed(2), draft.Stock, draft.SKU,
		image, string(draft.Category), draft.Rating, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, (*domain.ValidationError)(nil).With("sku", "sku already exists")
		}
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read product id: %w", err)
	}
	return c.GetProduct(ctx, strconv.FormatInt(id, 10))
}

func (c *SQLiteCatalog) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := c.getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(p)
	p.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, image = ?, category = ?,
		 rating = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.Price.StringFixed(2), p.Image, string(p.Category),
		p.Rating, boolToInt(p.IsActive), p.UpdatedAt.Format(time.RFC3339Nano), p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return p, nil
}

func (c *SQLiteCatalog) DeleteProduct(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "product", ID: id}
	}
	return nil
}

func (c *SQLiteCatalog) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := c.getProduct(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if p.Stock+delta < 0 {
		return p.Stock, &domain.StockExceededError{ProductID: id, Requested: -delta, Available: p.Stock}
	}
	stock := p.Stock + delta
	_, err = tx.ExecContext(ctx, `UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`,
		stock, time.Now().UTC().Format(time.RFC3339Nano), p.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stock update: %w", err)
	}
	return stock, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*domain.Product, error) {
	var (
		p                domain.Product
		id               int64
		category         string
		isActive         int
		created, updated string
	)
	err := s.Scan(&id, &p.Name, &p.Description, &p.Price, &p.Stock, &p.SKU, &p.Image,
		&category, &p.Rating, &isActive, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.ID = strconv.FormatInt(id, 10)
	p.Category = domain.Category(category)
	p.IsActive = isActive == 1
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
