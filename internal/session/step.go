package session

// Step represents a form step in the intake flow
type Step string

const (
	StepAwaitKind          Step = "AWAIT_KIND"
	StepAwaitObject        Step = "AWAIT_OBJECT"
	StepAwaitExpenseType   Step = "AWAIT_EXPENSE_TYPE"
	StepAwaitCurrency      Step = "AWAIT_CURRENCY"
	StepAwaitAmount        Step = "AWAIT_AMOUNT"
	StepAwaitExchangeRate  Step = "AWAIT_EXCHANGE_RATE"
	StepAwaitPaymentMethod Step = "AWAIT_PAYMENT_METHOD"
	StepAwaitComment       Step = "AWAIT_COMMENT"
	StepAwaitConfirm       Step = "AWAIT_CONFIRM"
	StepTerminal           Step = "TERMINAL"
)

var validSteps = map[Step]bool{
	StepAwaitKind:          true,
	StepAwaitObject:        true,
	StepAwaitExpenseType:   true,
	StepAwaitCurrency:      true,
	StepAwaitAmount:        true,
	StepAwaitExchangeRate:  true,
	StepAwaitPaymentMethod: true,
	StepAwaitComment:       true,
	StepAwaitConfirm:       true,
	StepTerminal:           true,
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid returns true if the step is a known form step
func (s Step) IsValid() bool {
	return validSteps[s]
}

// Trigger represents a form event class that can cause a step transition
type Trigger string

const (
	TriggerPickKind      Trigger = "PICK_KIND"
	TriggerPickObject    Trigger = "PICK_OBJECT"
	TriggerPickExpense   Trigger = "PICK_EXPENSE"
	TriggerPickCurrency  Trigger = "PICK_CURRENCY"
	TriggerAmountLocal   Trigger = "AMOUNT_LOCAL"
	TriggerAmountForeign Trigger = "AMOUNT_FOREIGN"
	TriggerEnterRate     Trigger = "ENTER_RATE"
	TriggerPickPayment   Trigger = "PICK_PAYMENT"
	TriggerEnterComment  Trigger = "ENTER_COMMENT"
	TriggerConfirm       Trigger = "CONFIRM"
	TriggerDecline       Trigger = "DECLINE"
	TriggerCancel        Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
