package domain

// Order Statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment Statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment Methods
const (
	PaymentMethodCOD  = "cod"
	PaymentMethodWave = "wave"
	PaymentMethodCard = "card"
)

// List exports for the enums API
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

var PaymentStatuses = []string{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

var PaymentMethods = []string{
	PaymentMethodCOD,
	PaymentMethodWave,
	PaymentMethodCard,
}

func IsValidOrderStatus(s string) bool {
	return contains(OrderStatuses, s)
}

func IsValidPaymentStatus(s string) bool {
	return contains(PaymentStatuses, s)
}

func IsValidPaymentMethod(s string) bool {
	return contains(PaymentMethods, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
