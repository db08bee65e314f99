// Package postgres provides a Postgres-backed product table that can serve as
// the catalog source.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ProductStoreConfig controls the Postgres connection pool used for product rows.
type ProductStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// ProductStore reads and replaces catalog rows. Rows keep the order they were
// written in via a position column; ids are not unique.
type ProductStore struct {
	pool  pool
	table string
}

// NewProductStore creates a Postgres-backed ProductStore using the provided config.
func NewProductStore(ctx context.Context, cfg ProductStoreConfig) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewProductStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewProductStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProductStoreWithPool(p pool, table string) (*ProductStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ProductStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ProductStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Name implements catalog.Source.
func (s *ProductStore) Name() string { return "postgres" }

// LoadProducts implements catalog.Source.
func (s *ProductStore) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	query := fmt.Sprintf(`
SELECT
	id,
	name,
	COALESCE(short_name, ''),
	COALESCE(description, ''),
	category,
	COALESCE(industry, '{}'),
	COALESCE(chemistry, ''),
	COALESCE(search_keywords, '{}'),
	COALESCE(image_url, ''),
	COALESCE(attributes, '{}'::jsonb)
FROM %s
ORDER BY position`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var (
			p        catalog.Product
			category string
			attrs    []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.ShortName,
			&p.Description,
			&category,
			&p.Industry,
			&p.Chemistry,
			&p.SearchKeywords,
			&p.ImageURL,
			&attrs,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Category = catalog.Category(category)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes of %s: %w", p.ID, err)
			}
			if len(p.Attributes) == 0 {
				p.Attributes = nil
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ReplaceProducts swaps the table contents for products in one transaction.
func (s *ProductStore) ReplaceProducts(ctx context.Context, products []catalog.Product) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	insert := fmt.Sprintf(`
INSERT INTO %s (
	position,
	id,
	name,
	short_name,
	description,
	category,
	industry,
	chemistry,
	search_keywords,
	image_url,
	attributes
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)
	for i, p := range products {
		attrs, mErr := json.Marshal(nonNilAttrs(p.Attributes))
		if mErr != nil {
			return fmt.Errorf("marshal attributes of %s: %w", p.ID, mErr)
		}
		if _, err = tx.Exec(ctx, insert,
			i,
			p.ID,
			p.Name,
			p.ShortName,
			p.Description,
			string(p.Category),
			nonNilStrings(p.Industry),
			p.Chemistry,
			nonNilStrings(p.SearchKeywords),
			p.ImageURL,
			attrs,
		); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nonNilAttrs(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
