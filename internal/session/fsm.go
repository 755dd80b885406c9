package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the
// current step.
var ErrInvalidTransition = errors.New("invalid step transition")

// transitionTable maps every (step, trigger) pair to its target step. The
// table is closed: a pair absent here is an invalid transition. The foreign
// currency branch is encoded as two distinct amount triggers so the split
// after AwaitAmount is visible in the table itself.
type transitionTable map[Step]map[Trigger]Step

// Machine walks one session through the form. It tracks the current step
// and validates transitions against a shared table.
type Machine struct {
	current Step
	table   transitionTable
}

// tableBuilder assembles a transition table
type tableBuilder struct {
	table transitionTable
}

// newTableBuilder creates an empty transition table builder
func newTableBuilder() *tableBuilder {
	return &tableBuilder{table: make(transitionTable)}
}

// permit allows a trigger to move fromStep to toStep
func (b *tableBuilder) permit(from Step, trigger Trigger, to Step) *tableBuilder {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("invalid step in transition %s -%s-> %s", from, trigger, to))
	}
	if b.table[from] == nil {
		b.table[from] = make(map[Trigger]Step)
	}
	b.table[from][trigger] = to
	return b
}

// formTable is the complete intake flow:
//
//	AwaitKind -> AwaitObject -> AwaitExpenseType -> AwaitCurrency ->
//	AwaitAmount -> [AwaitExchangeRate if Foreign] -> AwaitPaymentMethod ->
//	AwaitComment -> AwaitConfirm -> Terminal
//
// Cancel is permitted in every step except Terminal and resets to AwaitKind.
func formTable() transitionTable {
	b := newTableBuilder()
	b.permit(StepAwaitKind, TriggerPickKind, StepAwaitObject)
	b.permit(StepAwaitObject, TriggerPickObject, StepAwaitExpenseType)
	b.permit(StepAwaitExpenseType, TriggerPickExpense, StepAwaitCurrency)
	b.permit(StepAwaitCurrency, TriggerPickCurrency, StepAwaitAmount)
	b.permit(StepAwaitAmount, TriggerAmountLocal, StepAwaitPaymentMethod)
	b.permit(StepAwaitAmount, TriggerAmountForeign, StepAwaitExchangeRate)
	b.permit(StepAwaitExchangeRate, TriggerEnterRate, StepAwaitPaymentMethod)
	b.permit(StepAwaitPaymentMethod, TriggerPickPayment, StepAwaitComment)
	b.permit(StepAwaitComment, TriggerEnterComment, StepAwaitConfirm)
	b.permit(StepAwaitConfirm, TriggerConfirm, StepTerminal)
	b.permit(StepAwaitConfirm, TriggerDecline, StepAwaitKind)

	for step := range validSteps {
		if step != StepTerminal {
			b.permit(step, TriggerCancel, StepAwaitKind)
		}
	}
	return b.table
}

// newMachine creates a machine at AwaitKind over the shared form table
func newMachine(table transitionTable) *Machine {
	return &Machine{current: StepAwaitKind, table: table}
}

// Step returns the current step
func (m *Machine) Step() Step {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current step
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.table[m.current][trigger]
	return ok
}

// Fire executes the trigger, moving to the target step if permitted
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.table[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: trigger %s from step %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

// Reset returns the machine to AwaitKind
func (m *Machine) Reset() {
	m.current = StepAwaitKind
}
