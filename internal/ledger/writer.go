package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kapitalops/intakebot/internal/domain"
	"go.uber.org/zap"
)

// RowAppender is the workbook surface the writer needs
type RowAppender interface {
	AppendRow(ctx context.Context, columns []string) error
}

// NameLookup resolves an actor id to its display name
type NameLookup interface {
	GetName(ctx context.Context, actorID int64) (string, error)
}

// Writer turns a committed draft into the fixed ledger row layout:
//
//	object, kind, expense type, comment, foreign amount, exchange rate,
//	local amount, date, actor name, payment method
//
// Exactly one of the two amount columns is populated per currency branch.
type Writer struct {
	rows   RowAppender
	names  NameLookup
	logger *zap.Logger
}

// NewWriter creates a ledger writer
func NewWriter(rows RowAppender, names NameLookup, logger *zap.Logger) *Writer {
	return &Writer{
		rows:   rows,
		names:  names,
		logger: logger,
	}
}

// Append writes the draft as one ledger row
func (w *Writer) Append(ctx context.Context, draft *domain.DraftTransaction) error {
	name, err := w.names.GetName(ctx, draft.ActorID)
	if err != nil {
		return fmt.Errorf("failed to resolve actor name: %w", err)
	}
	return w.rows.AppendRow(ctx, BuildRow(draft, name))
}

// BuildRow lays the draft out into the fixed column order
func BuildRow(d *domain.DraftTransaction, actorName string) []string {
	var foreignAmount, exchangeRate, localAmount string
	if d.Currency == domain.CurrencyForeign {
		foreignAmount = formatNumber(d.Amount)
		exchangeRate = formatNumber(d.ExchangeRate)
	} else {
		localAmount = formatNumber(d.Amount)
	}

	t := d.CreatedAt
	// m/d/yyyy without leading zeros, the layout the sheet's formulas expect.
	date := fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())

	return []string{
		d.ObjectName,
		d.Kind.String(),
		d.ExpenseType,
		d.Comment,
		foreignAmount,
		exchangeRate,
		localAmount,
		date,
		actorName,
		d.PaymentMethod,
	}
}

// formatNumber writes a decimal as an integer when the value is whole,
// else as given.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
