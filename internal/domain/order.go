package domain

import (
	"context"
	"time"
)

type OrderFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	Search        string
}

// --- Cart Entities ---

type Cart struct {
	ID        string     `json:"id"`
	UserID    *string    `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ID        string   `json:"id"`
	CartID    string   `json:"cartId"`
	ProductID string   `json:"productId"`
	Product   Product  `json:"product"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`     // effective price at time of adding
	SalePrice *float64 `json:"salePrice"` // effective sale price (if any)
}

// --- Order Entities ---

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	User            User        `json:"user"`
	Status          string      `json:"status"`
	TotalAmount     float64     `json:"totalAmount"`
	TotalWeightKg   float64     `json:"totalWeightKg"`
	ShippingFee     float64     `json:"shippingFee"`
	ShippingMode    string      `json:"shippingMode"`
	ShippingRuleID  *int64      `json:"shippingRuleId"` // matched rule, for repricing consistency
	Destination     string      `json:"destination"`    // region code quoted against
	DeliveryTime    string      `json:"deliveryTime"`
	ShippingAddress JSONB       `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentStatus   string      `json:"paymentStatus"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"` // price at time of purchase
	WeightKg  float64 `json:"weightKg"`
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByUserID(ctx context.Context, userID string) ([]Order, error)
	GetAll(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdatePaymentStatus(ctx context.Context, id, status string) error

	// Cart
	GetCartByUserID(ctx context.Context, userID string) (*Cart, error)
	CreateCart(ctx context.Context, cart *Cart) error
	GetCartWithItems(ctx context.Context, userID string) ([]CartItem, error)
	UpsertCartItem(ctx context.Context, cartID, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, cartID, productID string) error
	ClearCart(ctx context.Context, cartID string) error
}
