package session

import (
	"errors"
	"testing"
)

func TestStep_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		expected bool
	}{
		{"valid step", StepAwaitKind, true},
		{"valid step", StepTerminal, true},
		{"invalid step", Step("INVALID"), false},
		{"empty step", Step(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.IsValid(); got != tt.expected {
				t.Errorf("Step.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMachine_HappyPathLocal(t *testing.T) {
	m := newMachine(formTable())

	sequence := []struct {
		trigger Trigger
		want    Step
	}{
		{TriggerPickKind, StepAwaitObject},
		{TriggerPickObject, StepAwaitExpenseType},
		{TriggerPickExpense, StepAwaitCurrency},
		{TriggerPickCurrency, StepAwaitAmount},
		{TriggerAmountLocal, StepAwaitPaymentMethod},
		{TriggerPickPayment, StepAwaitComment},
		{TriggerEnterComment, StepAwaitConfirm},
		{TriggerConfirm, StepTerminal},
	}

	for _, step := range sequence {
		if err := m.Fire(step.trigger); err != nil {
			t.Fatalf("Fire(%s) from %s: %v", step.trigger, m.Step(), err)
		}
		if m.Step() != step.want {
			t.Errorf("after %s got step %s, want %s", step.trigger, m.Step(), step.want)
		}
	}
}

func TestMachine_ForeignBranch(t *testing.T) {
	m := newMachine(formTable())

	for _, trigger := range []Trigger{TriggerPickKind, TriggerPickObject, TriggerPickExpense, TriggerPickCurrency} {
		if err := m.Fire(trigger); err != nil {
			t.Fatalf("Fire(%s): %v", trigger, err)
		}
	}

	if err := m.Fire(TriggerAmountForeign); err != nil {
		t.Fatalf("Fire(AMOUNT_FOREIGN): %v", err)
	}
	if m.Step() != StepAwaitExchangeRate {
		t.Errorf("foreign amount should lead to %s, got %s", StepAwaitExchangeRate, m.Step())
	}
	if err := m.Fire(TriggerEnterRate); err != nil {
		t.Fatalf("Fire(ENTER_RATE): %v", err)
	}
	if m.Step() != StepAwaitPaymentMethod {
		t.Errorf("rate should lead to %s, got %s", StepAwaitPaymentMethod, m.Step())
	}
}

func TestMachine_InvalidTransition(t *testing.T) {
	m := newMachine(formTable())

	err := m.Fire(TriggerConfirm)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire(CONFIRM) from AwaitKind = %v, want ErrInvalidTransition", err)
	}
	if m.Step() != StepAwaitKind {
		t.Errorf("failed fire must not move the machine, got %s", m.Step())
	}
}

func TestMachine_CancelFromEveryStep(t *testing.T) {
	table := formTable()
	for step := range validSteps {
		if step == StepTerminal {
			continue
		}
		m := &Machine{current: step, table: table}
		if !m.CanFire(TriggerCancel) {
			t.Errorf("cancel not permitted from %s", step)
			continue
		}
		if err := m.Fire(TriggerCancel); err != nil {
			t.Errorf("Fire(CANCEL) from %s: %v", step, err)
		}
		if m.Step() != StepAwaitKind {
			t.Errorf("cancel from %s landed on %s, want %s", step, m.Step(), StepAwaitKind)
		}
	}
}

func TestMachine_DeclineReturnsToStart(t *testing.T) {
	m := &Machine{current: StepAwaitConfirm, table: formTable()}
	if err := m.Fire(TriggerDecline); err != nil {
		t.Fatalf("Fire(DECLINE): %v", err)
	}
	if m.Step() != StepAwaitKind {
		t.Errorf("decline landed on %s, want %s", m.Step(), StepAwaitKind)
	}
}
