package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kapitalops/intakebot/internal/channel"
	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
)

// Prompt is the next message to render for a session step
type Prompt struct {
	Text     string
	Keyboard *channel.Keyboard
}

func (m *Manager) promptFor(ctx context.Context, step Step, draft *domain.DraftTransaction) (*Prompt, error) {
	switch step {
	case StepAwaitKind:
		return &Prompt{
			Text: "What type of operation?",
			Keyboard: channel.NewKeyboard(2,
				channel.Button{Label: "🟢 Inflow", Token: intent.PickKind(domain.KindInflow).Encode()},
				channel.Button{Label: "🔴 Outflow", Token: intent.PickKind(domain.KindOutflow).Encode()},
			),
		}, nil

	case StepAwaitObject:
		kb, err := m.catalogKeyboard(ctx, domain.CatalogObjects, intent.PickObject)
		if err != nil {
			return nil, err
		}
		return &Prompt{Text: "Select the object:", Keyboard: kb}, nil

	case StepAwaitExpenseType:
		kb, err := m.catalogKeyboard(ctx, domain.CatalogExpenseTypes, intent.PickExpense)
		if err != nil {
			return nil, err
		}
		return &Prompt{Text: "Select the expense type:", Keyboard: kb}, nil

	case StepAwaitCurrency:
		return &Prompt{
			Text: "Som or dollar?",
			Keyboard: channel.NewKeyboard(2,
				channel.Button{Label: "Som", Token: intent.PickCurrency(domain.CurrencyLocal).Encode()},
				channel.Button{Label: "Dollar", Token: intent.PickCurrency(domain.CurrencyForeign).Encode()},
			),
		}, nil

	case StepAwaitAmount:
		return &Prompt{Text: "Enter the amount:"}, nil

	case StepAwaitExchangeRate:
		return &Prompt{Text: "Enter the dollar exchange rate:"}, nil

	case StepAwaitPaymentMethod:
		kb, err := m.catalogKeyboard(ctx, domain.CatalogPayMethods, intent.PickPayment)
		if err != nil {
			return nil, err
		}
		return &Prompt{Text: "Select the payment method:", Keyboard: kb}, nil

	case StepAwaitComment:
		return &Prompt{
			Text: "Enter the contract number (or skip):",
			Keyboard: channel.NewKeyboard(1,
				channel.Button{Label: "Skip", Token: intent.SkipComment().Encode()},
			),
		}, nil

	case StepAwaitConfirm:
		return &Prompt{
			Text: Summary(draft),
			Keyboard: channel.NewKeyboard(2,
				channel.Button{Label: "✅ Yes", Token: intent.Confirm(true).Encode()},
				channel.Button{Label: "❌ No", Token: intent.Confirm(false).Encode()},
			),
		}, nil
	}
	return nil, fmt.Errorf("no prompt for step %s", step)
}

func (m *Manager) catalogKeyboard(ctx context.Context, kind domain.CatalogKind, mk func(string) intent.Intent) (*channel.Keyboard, error) {
	names, err := m.catalog.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	buttons := make([]channel.Button, 0, len(names))
	for _, name := range names {
		buttons = append(buttons, channel.Button{Label: name, Token: mk(name).Encode()})
	}
	return channel.NewKeyboard(2, buttons...), nil
}

// Summary renders the draft recap shown before confirmation and in admin
// notifications.
func Summary(d *domain.DraftTransaction) string {
	kindEmoji := "🔴"
	if d.Kind == domain.KindInflow {
		kindEmoji = "🟢"
	}
	amount := FormatNumber(d.Amount)
	var amountInfo string
	if d.Currency == domain.CurrencyForeign {
		amountInfo = fmt.Sprintf("%s $ (rate: %s)", amount, FormatNumber(d.ExchangeRate))
	} else {
		amountInfo = amount + " som"
	}
	return fmt.Sprintf(
		"Result:\nType: %s %s\nObject: %s\nExpense type: %s\nCurrency: %s\nAmount: %s\nContract number: %s\nTime: %s",
		kindEmoji, d.Kind, d.ObjectName, d.ExpenseType, d.Currency,
		amountInfo, d.Comment, d.CreatedAt.Format("2006-01-02 15:04:05"))
}

// FormatNumber writes a decimal as an integer when the value is whole,
// else as given.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
