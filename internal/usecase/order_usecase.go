package usecase

import (
	"context"
	"errors"
	"fmt"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/logger"
	"kairaba-backend/pkg/utils"
)

// OrderUsecase handles the cart and checkout. Checkout is the main consumer
// of the shipping engine: it sums parcel weight across the cart, asks for a
// quote, and stores the matched rule id on the order.
type OrderUsecase struct {
	orderRepo   domain.OrderRepository
	productRepo domain.ProductRepository
	shipping    *ShippingUsecase
	txManager   domain.TransactionManager
	maxQuantity int
}

func NewOrderUsecase(
	orderRepo domain.OrderRepository,
	productRepo domain.ProductRepository,
	shipping *ShippingUsecase,
	txManager domain.TransactionManager,
	maxQuantity int,
) *OrderUsecase {
	return &OrderUsecase{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		shipping:    shipping,
		txManager:   txManager,
		maxQuantity: maxQuantity,
	}
}

// --- Cart ---

func (u *OrderUsecase) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return u.orderRepo.GetCartWithItems(ctx, userID)
}

func (u *OrderUsecase) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 || quantity > u.maxQuantity {
		return fmt.Errorf("quantity must be between 1 and %d", u.maxQuantity)
	}

	product, err := u.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Active {
		return domain.ErrNotFound
	}
	if product.Stock < quantity {
		return fmt.Errorf("only %d in stock", product.Stock)
	}

	cart, err := u.orderRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		cart = &domain.Cart{ID: utils.GenerateUUID(), UserID: &userID}
		if err := u.orderRepo.CreateCart(ctx, cart); err != nil {
			return err
		}
	}

	return u.orderRepo.UpsertCartItem(ctx, cart.ID, productID, quantity)
}

func (u *OrderUsecase) RemoveFromCart(ctx context.Context, userID, productID string) error {
	cart, err := u.orderRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		return err
	}
	return u.orderRepo.RemoveCartItem(ctx, cart.ID, productID)
}

// --- Checkout ---

// CheckoutRequest is what the storefront submits. Destination defaults to the
// shipping address country when empty.
type CheckoutRequest struct {
	Destination     string       `json:"destination"`
	ShippingMode    string       `json:"shippingMode"`
	PaymentMethod   string       `json:"paymentMethod"`
	ShippingAddress domain.JSONB `json:"shippingAddress"`
}

// CheckoutSummary is the priced preview shown before the order is placed.
type CheckoutSummary struct {
	Items         []domain.CartItem `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	TotalWeightKg float64           `json:"totalWeightKg"`
	Shipping      *domain.RuleMatch `json:"shipping"`
	Total         float64           `json:"total"`
}

// PreviewCheckout prices the current cart against a destination and mode
// without committing anything. Returns ErrShippingUnavailable when no rule
// covers the parcel.
func (u *OrderUsecase) PreviewCheckout(ctx context.Context, userID, destination, modeKey string) (*CheckoutSummary, error) {
	items, err := u.orderRepo.GetCartWithItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	subtotal, weight := cartTotals(items)

	quote, err := u.shipping.Quote(ctx, destination, modeKey, weight)
	if err != nil {
		return nil, err
	}
	if !quote.Available {
		return nil, domain.ErrShippingUnavailable
	}

	return &CheckoutSummary{
		Items:         items,
		Subtotal:      subtotal,
		TotalWeightKg: weight,
		Shipping:      quote.Match,
		Total:         subtotal + quote.Match.Price,
	}, nil
}

// Checkout re-quotes at order time (cart contents may have changed since the
// preview), decrements stock, creates the order, and clears the cart, all in
// one transaction.
func (u *OrderUsecase) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*domain.Order, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCOD
	}
	if !domain.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}

	items, err := u.orderRepo.GetCartWithItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	subtotal, weight := cartTotals(items)

	quote, err := u.shipping.Quote(ctx, req.Destination, req.ShippingMode, weight)
	if err != nil {
		return nil, err
	}
	if !quote.Available {
		return nil, domain.ErrShippingUnavailable
	}
	match := quote.Match

	order := &domain.Order{
		ID:              utils.GenerateUUID(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		TotalAmount:     subtotal + match.Price,
		TotalWeightKg:   weight,
		ShippingFee:     match.Price,
		ShippingMode:    match.ModeKey,
		ShippingRuleID:  &match.RuleID,
		Destination:     match.Destination,
		DeliveryTime:    match.DeliveryTime,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
	}
	if order.Destination == domain.DestinationWildcard {
		// Store the customer's actual destination, not the wildcard scope
		// the rule matched under.
		order.Destination = req.Destination
	}

	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        utils.GenerateUUID(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			WeightKg:  item.Product.WeightKg,
		})
	}

	var cartID string
	if cart, err := u.orderRepo.GetCartByUserID(ctx, userID); err == nil {
		cartID = cart.ID
	}

	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		for _, item := range items {
			if err := u.productRepo.AdjustStock(txCtx, item.ProductID, -item.Quantity); err != nil {
				return err
			}
		}
		if err := u.orderRepo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if cartID != "" {
			return u.orderRepo.ClearCart(txCtx, cartID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Float64("total", order.TotalAmount).
		Float64("weight_kg", order.TotalWeightKg).
		Int64("shipping_rule_id", match.RuleID).
		Msg("Order placed")

	return order, nil
}

func cartTotals(items []domain.CartItem) (subtotal, weightKg float64) {
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
		weightKg += item.Product.WeightKg * float64(item.Quantity)
	}
	return subtotal, weightKg
}

// --- Order queries / admin ---

func (u *OrderUsecase) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*domain.Order, error) {
	order, err := u.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (u *OrderUsecase) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return u.orderRepo.GetByUserID(ctx, userID)
}

func (u *OrderUsecase) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	return u.orderRepo.GetAll(ctx, filter)
}

func (u *OrderUsecase) UpdateOrderStatus(ctx context.Context, id, status string) error {
	if !domain.IsValidOrderStatus(status) {
		return fmt.Errorf("invalid order status %q", status)
	}
	return u.orderRepo.UpdateStatus(ctx, id, status)
}

func (u *OrderUsecase) UpdatePaymentStatus(ctx context.Context, id, status string) error {
	if !domain.IsValidPaymentStatus(status) {
		return fmt.Errorf("invalid payment status %q", status)
	}
	return u.orderRepo.UpdatePaymentStatus(ctx, id, status)
}
