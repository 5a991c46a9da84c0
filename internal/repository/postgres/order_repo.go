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

type orderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) domain.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, status, total_amount, total_weight_kg, shipping_fee,
	shipping_mode, shipping_rule_id, destination, delivery_time, shipping_address,
	payment_method, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var total, weight, fee pgtype.Numeric
	var ruleID pgtype.Int8
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &total, &weight, &fee,
		&o.ShippingMode, &ruleID, &o.Destination, &o.DeliveryTime, &o.ShippingAddress,
		&o.PaymentMethod, &o.PaymentStatus, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.TotalAmount = numericToFloat64(total)
	o.TotalWeightKg = numericToFloat64(weight)
	o.ShippingFee = numericToFloat64(fee)
	if ruleID.Valid {
		id := ruleID.Int64
		o.ShippingRuleID = &id
	}
	o.CreatedAt = pgtimeToTime(createdAt)
	o.UpdatedAt = pgtimeToTime(updatedAt)
	return &o, nil
}

func ruleIDParam(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	q := querierFrom(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO orders
			(id, user_id, status, total_amount, total_weight_kg, shipping_fee, shipping_mode,
			 shipping_rule_id, destination, delivery_time, shipping_address, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Status,
		float64ToNumeric(order.TotalAmount), float64ToNumericPrecise(order.TotalWeightKg), float64ToNumeric(order.ShippingFee),
		order.ShippingMode, ruleIDParam(order.ShippingRuleID), order.Destination, order.DeliveryTime,
		order.ShippingAddress, order.PaymentMethod, order.PaymentStatus)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return domain.NewStorageError("create order", err)
	}
	order.CreatedAt = pgtimeToTime(createdAt)
	order.UpdatedAt = pgtimeToTime(updatedAt)

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, weight_kg)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.OrderID, item.ProductID, item.Quantity,
			float64ToNumeric(item.Price), float64ToNumericPrecise(item.WeightKg))
		if err != nil {
			return domain.NewStorageError("create order item", err)
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := querierFrom(ctx, r.db)
	order, err := scanOrder(q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get order", err)
	}

	items, err := r.loadItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q Querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.weight_kg,
			p.name, p.slug, p.images
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, domain.NewStorageError("load order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var price, weight pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price, &weight,
			&it.Product.Name, &it.Product.Slug, &it.Product.Images); err != nil {
			return nil, domain.NewStorageError("scan order item", err)
		}
		it.Price = numericToFloat64(price)
		it.WeightKg = numericToFloat64(weight)
		it.Product.ID = it.ProductID
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	q := querierFrom(ctx, r.db)
	rows, err := q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, domain.NewStorageError("list user orders", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan order", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepository) GetAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	q := querierFrom(ctx, r.db)

	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		where += ` AND payment_status = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += ` AND id::text ILIKE $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewStorageError("count orders", err)
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
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, domain.NewStorageError("list orders", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, domain.NewStorageError("scan order", err)
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return domain.NewStorageError("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id, status string) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return domain.NewStorageError("update payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Cart ---

func (r *orderRepository) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	q := querierFrom(ctx, r.db)
	var cart domain.Cart
	var createdAt, updatedAt pgtype.Timestamptz
	err := q.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get cart", err)
	}
	cart.CreatedAt = pgtimeToTime(createdAt)
	cart.UpdatedAt = pgtimeToTime(updatedAt)
	return &cart, nil
}

func (r *orderRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx,
		`INSERT INTO carts (id, user_id) VALUES ($1, $2)`, cart.ID, cart.UserID)
	if err != nil {
		return domain.NewStorageError("create cart", err)
	}
	return nil
}

func (r *orderRepository) GetCartWithItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	q := querierFrom(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
			p.id, p.name, p.slug, p.base_price, p.sale_price, p.weight_kg, p.stock, p.images, p.active
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY ci.id`, userID)
	if err != nil {
		return nil, domain.NewStorageError("get cart items", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		var basePrice, weight pgtype.Numeric
		var salePrice pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity,
			&it.Product.ID, &it.Product.Name, &it.Product.Slug, &basePrice, &salePrice,
			&weight, &it.Product.Stock, &it.Product.Images, &it.Product.Active); err != nil {
			return nil, domain.NewStorageError("scan cart item", err)
		}
		it.Product.BasePrice = numericToFloat64(basePrice)
		if salePrice.Valid {
			sp := numericToFloat64(salePrice)
			it.Product.SalePrice = &sp
		}
		it.Product.WeightKg = numericToFloat64(weight)
		it.Price = it.Product.EffectivePrice()
		it.SalePrice = it.Product.SalePrice
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepository) UpsertCartItem(ctx context.Context, cartID, productID string, quantity int) error {
	q := querierFrom(ctx, r.db)
	if quantity <= 0 {
		return r.RemoveCartItem(ctx, cartID, productID)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = $3`,
		cartID, productID, quantity)
	if err != nil {
		return domain.NewStorageError("upsert cart item", err)
	}
	return nil
}

func (r *orderRepository) RemoveCartItem(ctx context.Context, cartID, productID string) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return domain.NewStorageError("remove cart item", err)
	}
	return nil
}

func (r *orderRepository) ClearCart(ctx context.Context, cartID string) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return domain.NewStorageError("clear cart", err)
	}
	return nil
}
