package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrderRepo keeps carts and orders in maps; just enough behavior for the
// checkout paths under test.
type fakeOrderRepo struct {
	mu     sync.Mutex
	carts  map[string]*domain.Cart // by userID
	items  map[string][]domain.CartItem
	orders map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		carts:  make(map[string]*domain.Cart),
		items:  make(map[string][]domain.CartItem),
		orders: make(map[string]*domain.Order),
	}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) GetByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) GetAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (f *fakeOrderRepo) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cart, nil
}

func (f *fakeOrderRepo) CreateCart(ctx context.Context, cart *domain.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[*cart.UserID] = cart
	return nil
}

func (f *fakeOrderRepo) GetCartWithItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[userID], nil
}

func (f *fakeOrderRepo) UpsertCartItem(ctx context.Context, cartID, productID string, quantity int) error {
	return nil
}

func (f *fakeOrderRepo) RemoveCartItem(ctx context.Context, cartID, productID string) error {
	return nil
}

func (f *fakeOrderRepo) ClearCart(ctx context.Context, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, cart := range f.carts {
		if cart.ID == cartID {
			delete(f.items, userID)
		}
	}
	return nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*domain.Product)}
}

func (f *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Update(ctx context.Context, p *domain.Product) error { return nil }

func (f *fakeProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeProductRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	return nil, 0, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeProductRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return fmt.Errorf("product %s: insufficient stock", id)
	}
	p.Stock += delta
	return nil
}

func newCheckoutFixture(t *testing.T) (*OrderUsecase, *fakeOrderRepo, *fakeProductRepo, *ShippingUsecase) {
	t.Helper()

	shippingUC := newTestShippingUsecase(t)
	seedMode(t, shippingUC, "express", true, "3-7 days")
	mustCreateRule(t, shippingUC, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 1.0, Price: 2345,
	})
	mustCreateRule(t, shippingUC, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 1.0, MaxWeight: 2.0, Price: 3752, Priority: 1,
	})

	orderRepo := newFakeOrderRepo()
	productRepo := newFakeProductRepo()
	uc := NewOrderUsecase(orderRepo, productRepo, shippingUC, memory.NewTransactionManager(), 1000)
	return uc, orderRepo, productRepo, shippingUC
}

func addCart(repo *fakeOrderRepo, productRepo *fakeProductRepo, userID string, p domain.Product, qty int) {
	productRepo.products[p.ID] = &p
	cart, ok := repo.carts[userID]
	if !ok {
		cart = &domain.Cart{ID: "cart-" + userID, UserID: &userID}
		repo.carts[userID] = cart
	}
	repo.items[userID] = append(repo.items[userID], domain.CartItem{
		CartID:    cart.ID,
		ProductID: p.ID,
		Product:   p,
		Quantity:  qty,
		Price:     p.EffectivePrice(),
	})
}

func TestCheckoutSumsWeightAcrossCart(t *testing.T) {
	uc, orderRepo, productRepo, _ := newCheckoutFixture(t)

	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p1", Name: "Phone case", BasePrice: 500, WeightKg: 0.2, Stock: 10, Active: true,
	}, 3)
	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p2", Name: "Charger", BasePrice: 900, WeightKg: 0.4, Stock: 5, Active: true,
	}, 2)

	// 3*0.2 + 2*0.4 = 1.4 kg, lands in the second band.
	order, err := uc.Checkout(context.Background(), "u1", CheckoutRequest{
		Destination:   "SEN",
		ShippingMode:  "express",
		PaymentMethod: domain.PaymentMethodCOD,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.4, order.TotalWeightKg, 1e-9)
	assert.Equal(t, 3752.0, order.ShippingFee)
	assert.Equal(t, 500.0*3+900.0*2+3752.0, order.TotalAmount)
	require.NotNil(t, order.ShippingRuleID)
	assert.Equal(t, "SEN", order.Destination)
	assert.Len(t, order.Items, 2)

	// Stock decremented, cart cleared.
	p1, _ := productRepo.GetByID(context.Background(), "p1")
	assert.Equal(t, 7, p1.Stock)
	items, _ := orderRepo.GetCartWithItems(context.Background(), "u1")
	assert.Empty(t, items)
}

func TestCheckoutUnavailableShipping(t *testing.T) {
	uc, orderRepo, productRepo, _ := newCheckoutFixture(t)

	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p1", Name: "Anvil", BasePrice: 100, WeightKg: 50, Stock: 1, Active: true,
	}, 1)

	_, err := uc.Checkout(context.Background(), "u1", CheckoutRequest{
		Destination:  "SEN",
		ShippingMode: "express",
	})
	assert.ErrorIs(t, err, domain.ErrShippingUnavailable)

	// Nothing was committed.
	p1, _ := productRepo.GetByID(context.Background(), "p1")
	assert.Equal(t, 1, p1.Stock)
}

func TestCheckoutEmptyCart(t *testing.T) {
	uc, _, _, _ := newCheckoutFixture(t)

	_, err := uc.Checkout(context.Background(), "nobody", CheckoutRequest{
		Destination:  "SEN",
		ShippingMode: "express",
	})
	assert.Error(t, err)
}

func TestCheckoutStoresActualDestinationForWildcardMatch(t *testing.T) {
	uc, orderRepo, productRepo, shippingUC := newCheckoutFixture(t)

	mustCreateRule(t, shippingUC, CreateRuleRequest{
		Destination: "*", ModeKey: "express",
		MinWeight: 0, MaxWeight: 1, Price: 5000,
	})

	addCart(orderRepo, productRepo, "u2", domain.Product{
		ID: "p3", Name: "Scarf", BasePrice: 300, WeightKg: 0.1, Stock: 2, Active: true,
	}, 1)

	order, err := uc.Checkout(context.Background(), "u2", CheckoutRequest{
		Destination:  "UGA",
		ShippingMode: "express",
	})
	require.NoError(t, err)
	assert.Equal(t, "UGA", order.Destination, "the order records where it ships, not the wildcard")
	assert.Equal(t, 5000.0, order.ShippingFee)
}

func TestPreviewCheckoutDoesNotMutate(t *testing.T) {
	uc, orderRepo, productRepo, _ := newCheckoutFixture(t)

	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p1", Name: "Mug", BasePrice: 250, WeightKg: 0.4, Stock: 4, Active: true,
	}, 2)

	summary, err := uc.PreviewCheckout(context.Background(), "u1", "SEN", "express")
	require.NoError(t, err)

	assert.Equal(t, 500.0, summary.Subtotal)
	assert.InDelta(t, 0.8, summary.TotalWeightKg, 1e-9)
	assert.Equal(t, 2345.0, summary.Shipping.Price)
	assert.Equal(t, 2845.0, summary.Total)

	p1, _ := productRepo.GetByID(context.Background(), "p1")
	assert.Equal(t, 4, p1.Stock, "preview never touches stock")
	items, _ := orderRepo.GetCartWithItems(context.Background(), "u1")
	assert.Len(t, items, 1, "preview never clears the cart")
}

func TestCheckoutRejectsBadPaymentMethod(t *testing.T) {
	uc, orderRepo, productRepo, _ := newCheckoutFixture(t)

	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p1", Name: "Mug", BasePrice: 250, WeightKg: 0.5, Stock: 4, Active: true,
	}, 1)

	_, err := uc.Checkout(context.Background(), "u1", CheckoutRequest{
		Destination:   "SEN",
		ShippingMode:  "express",
		PaymentMethod: "barter",
	})
	assert.Error(t, err)
}

func TestAddToCartStockAndQuantityLimits(t *testing.T) {
	uc, _, productRepo, _ := newCheckoutFixture(t)

	productRepo.products["p1"] = &domain.Product{
		ID: "p1", Name: "Mug", BasePrice: 250, WeightKg: 0.5, Stock: 2, Active: true,
	}

	assert.Error(t, uc.AddToCart(context.Background(), "u1", "p1", 0))
	assert.Error(t, uc.AddToCart(context.Background(), "u1", "p1", 5), "exceeds stock")
	assert.NoError(t, uc.AddToCart(context.Background(), "u1", "p1", 2))
}

func TestPreviewCheckoutBoundaryWeightUsesHigherPriorityBand(t *testing.T) {
	uc, orderRepo, productRepo, _ := newCheckoutFixture(t)

	// 2 * 0.5 kg = exactly 1.0 kg: both bands contain it (inclusive bounds),
	// so priority decides, and the fixture's second band carries priority 1.
	addCart(orderRepo, productRepo, "u1", domain.Product{
		ID: "p1", Name: "Mug", BasePrice: 250, WeightKg: 0.5, Stock: 4, Active: true,
	}, 2)

	summary, err := uc.PreviewCheckout(context.Background(), "u1", "SEN", "express")
	require.NoError(t, err)
	require.NotNil(t, summary.Shipping)
	assert.Equal(t, 3752.0, summary.Shipping.Price)
}
