package domain

import "strings"

type OrderStatus uint8

const (
	StatusPending OrderStatus = iota + 1
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = map[OrderStatus]string{
	StatusPending:    "Pending",
	StatusProcessing: "Processing",
	StatusCompleted:  "Completed",
	StatusFailed:     "Failed",
}

func (s OrderStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

func ParseOrderStatus(text string) (OrderStatus, error) {
	t := strings.TrimSpace(text)
	for s, n := range statusNames {
		if strings.EqualFold(n, t) {
			return s, nil
		}
	}
	return 0, ErrUnknownStatus
}

type PaymentMethod uint8

const (
	CreditCard PaymentMethod = iota + 1
	BankTransfer
)

// PaymentMethodRule is the message reported for an unrecognized payment method.
const PaymentMethodRule = "Payment method must be either 'CreditCard' or 'BankTransfer'"

func (m PaymentMethod) String() string {
	switch m {
	case CreditCard:
		return "CreditCard"
	case BankTransfer:
		return "BankTransfer"
	default:
		return "Unknown"
	}
}

func (m PaymentMethod) Valid() bool {
	return m == CreditCard || m == BankTransfer
}

// ParsePaymentMethod accepts the canonical names in any letter case.
func ParsePaymentMethod(text string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "creditcard":
		return CreditCard, nil
	case "banktransfer":
		return BankTransfer, nil
	default:
		return 0, ErrUnknownPaymentMethod
	}
}
