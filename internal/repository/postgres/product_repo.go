package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kairaba-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) domain.ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, slug, description, base_price, sale_price, weight_kg,
	stock, images, category, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var basePrice, weight pgtype.Numeric
	var salePrice pgtype.Numeric
	var category pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &basePrice, &salePrice, &weight,
		&p.Stock, &p.Images, &category, &p.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.BasePrice = numericToFloat64(basePrice)
	if salePrice.Valid {
		sp := numericToFloat64(salePrice)
		p.SalePrice = &sp
	}
	p.WeightKg = numericToFloat64(weight)
	p.Category = textToPtr(category)
	p.CreatedAt = pgtimeToTime(createdAt)
	p.UpdatedAt = pgtimeToTime(updatedAt)
	return &p, nil
}

func salePriceParam(sp *float64) pgtype.Numeric {
	if sp == nil {
		return pgtype.Numeric{}
	}
	return float64ToNumeric(*sp)
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	q := querierFrom(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO products (id, name, slug, description, base_price, sale_price, weight_kg, stock, images, category, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Slug, p.Description,
		float64ToNumeric(p.BasePrice), salePriceParam(p.SalePrice), float64ToNumericPrecise(p.WeightKg),
		p.Stock, p.Images, ptrToText(p.Category), p.Active)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return domain.NewStorageError("create product", err)
	}
	p.CreatedAt = pgtimeToTime(createdAt)
	p.UpdatedAt = pgtimeToTime(updatedAt)
	return nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE products
		SET name = $2, slug = $3, description = $4, base_price = $5, sale_price = $6,
			weight_kg = $7, stock = $8, images = $9, category = $10, active = $11, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Slug, p.Description,
		float64ToNumeric(p.BasePrice), salePriceParam(p.SalePrice), float64ToNumericPrecise(p.WeightKg),
		p.Stock, p.Images, ptrToText(p.Category), p.Active)
	if err != nil {
		return domain.NewStorageError("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := querierFrom(ctx, r.db)
	p, err := scanProduct(q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get product", err)
	}
	return p, nil
}

func (r *productRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	q := querierFrom(ctx, r.db)
	p, err := scanProduct(q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get product by slug", err)
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	q := querierFrom(ctx, r.db)

	where := ` WHERE 1=1`
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += ` AND active = $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewStorageError("count products", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)
	sql := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, domain.NewStorageError("list products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, domain.NewStorageError("scan product", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `UPDATE products SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return domain.NewStorageError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return domain.NewStorageError("adjust stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: insufficient stock", id)
	}
	return nil
}
