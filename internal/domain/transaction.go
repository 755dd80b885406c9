package domain

import "time"

// Kind is the direction of a transaction
type Kind string

const (
	KindInflow  Kind = "Inflow"
	KindOutflow Kind = "Outflow"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Currency identifies the currency branch of a draft
type Currency string

const (
	CurrencyLocal   Currency = "Local"
	CurrencyForeign Currency = "Foreign"
)

// String returns the string representation of the currency
func (c Currency) String() string {
	return string(c)
}

// CommentNone is the sentinel stored when the actor skips the comment step.
const CommentNone = "-"

// DraftTransaction is the structured record assembled step by step by a
// session. A draft is commit-eligible only when every field required by its
// currency branch is populated.
type DraftTransaction struct {
	ActorID       int64
	Kind          Kind
	ObjectName    string
	ExpenseType   string
	Currency      Currency
	Amount        float64
	ExchangeRate  float64
	PaymentMethod string
	Comment       string
	CreatedAt     time.Time
}

// LocalValue returns the transaction value expressed in local currency.
// Foreign drafts are converted through the captured exchange rate.
func (d *DraftTransaction) LocalValue() float64 {
	if d.Currency == CurrencyForeign {
		return d.Amount * d.ExchangeRate
	}
	return d.Amount
}

// Complete reports whether every field required by the currency branch is
// populated.
func (d *DraftTransaction) Complete() bool {
	if d.Kind == "" || d.ObjectName == "" || d.ExpenseType == "" ||
		d.Currency == "" || d.Amount <= 0 || d.PaymentMethod == "" || d.Comment == "" {
		return false
	}
	if d.Currency == CurrencyForeign && d.ExchangeRate <= 0 {
		return false
	}
	return true
}
