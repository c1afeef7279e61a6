package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order is one placed purchase. Fields are unexported so that status changes
// only happen through the transition methods.
type Order struct {
	id            uuid.UUID
	userID        string
	productID     string
	quantity      int
	paymentMethod PaymentMethod
	status        OrderStatus
	createdAt     time.Time
	updatedAt     *time.Time
	processedAt   *time.Time

	now func() time.Time
}

type Option func(*Order)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Order) {
		if now != nil {
			o.now = now
		}
	}
}

// WithID pins the generated identifier.
func WithID(id uuid.UUID) Option {
	return func(o *Order) {
		if id != uuid.Nil {
			o.id = id
		}
	}
}

func NewOrder(userID, productID string, quantity int, method PaymentMethod, opts ...Option) (*Order, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		verr.Add("User ID is required")
	}
	if strings.TrimSpace(productID) == "" {
		verr.Add("Product ID is required")
	}
	if quantity <= 0 {
		verr.Add("Quantity must be greater than zero")
	}
	if !method.Valid() {
		verr.Add(PaymentMethodRule)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	o := &Order{
		id:            uuid.New(),
		userID:        userID,
		productID:     productID,
		quantity:      quantity,
		paymentMethod: method,
		status:        StatusPending,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.createdAt = o.now().UTC()
	return o, nil
}

// RestoreOrder rebuilds an entity from persisted state.
func RestoreOrder(
	id uuid.UUID,
	userID, productID string,
	quantity int,
	method PaymentMethod,
	status OrderStatus,
	createdAt time.Time,
	updatedAt, processedAt *time.Time,
) *Order {
	return &Order{
		id:            id,
		userID:        userID,
		productID:     productID,
		quantity:      quantity,
		paymentMethod: method,
		status:        status,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		processedAt:   processedAt,
		now:           time.Now,
	}
}

func (o *Order) ID() uuid.UUID                { return o.id }
func (o *Order) UserID() string               { return o.userID }
func (o *Order) ProductID() string            { return o.productID }
func (o *Order) Quantity() int                { return o.quantity }
func (o *Order) PaymentMethod() PaymentMethod { return o.paymentMethod }
func (o *Order) Status() OrderStatus          { return o.status }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
func (o *Order) UpdatedAt() *time.Time        { return copyTime(o.updatedAt) }
func (o *Order) ProcessedAt() *time.Time      { return copyTime(o.processedAt) }

func (o *Order) MarkProcessing() error {
	if o.status != StatusPending {
		return o.transitionError(StatusProcessing)
	}
	o.status = StatusProcessing
	o.touch()
	return nil
}

func (o *Order) MarkCompleted() error {
	if o.status != StatusProcessing {
		return o.transitionError(StatusCompleted)
	}
	o.status = StatusCompleted
	ts := o.touch()
	o.processedAt = &ts
	return nil
}

func (o *Order) MarkFailed() error {
	if o.status == StatusCompleted {
		return o.transitionError(StatusFailed)
	}
	o.status = StatusFailed
	o.touch()
	return nil
}

// Clone returns an independent copy, used by stores that must not share
// state with callers.
func (o *Order) Clone() *Order {
	c := *o
	c.updatedAt = copyTime(o.updatedAt)
	c.processedAt = copyTime(o.processedAt)
	return &c
}

// Summary projects the order for read models.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID:       o.id,
		ProductID:     o.productID,
		Quantity:      o.quantity,
		PaymentMethod: o.paymentMethod.String(),
		Status:        o.status.String(),
		CreatedAt:     o.createdAt,
		ProcessedAt:   copyTime(o.processedAt),
	}
}

func (o *Order) touch() time.Time {
	ts := o.clock()
	o.updatedAt = &ts
	return ts
}

func (o *Order) clock() time.Time {
	if o.now == nil {
		return time.Now().UTC()
	}
	return o.now().UTC()
}

func (o *Order) transitionError(to OrderStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.status, to)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
