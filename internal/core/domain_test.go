package core

import (
	"errors"
	"testing"
	"time"
)

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food", Description: "Meals"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Category{
		{Name: "", Description: "Meals"},
		{Name: "   ", Description: "Meals"},
		{Name: "Food", Description: ""},
	}
	for i, c := range bads {
		err := c.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidationError(err) {
			t.Fatalf("case %d expected *ValidationError, got %T", i, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	when := time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
	good := NewExpense(1, Cash, 500, "Lunch", when)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{CategoryID: 0, PaymentMethod: Cash, Amount: 1, Description: "a", ExpenseDate: when},
		{CategoryID: 1, PaymentMethod: PaymentMethod{}, Amount: 1, Description: "a", ExpenseDate: when},
		{CategoryID: 1, PaymentMethod: Cash, Amount: 0, Description: "a", ExpenseDate: when},
		{CategoryID: 1, PaymentMethod: Cash, Amount: -5, Description: "a", ExpenseDate: when},
		{CategoryID: 1, PaymentMethod: Cash, Amount: 1, Description: " ", ExpenseDate: when},
		{CategoryID: 1, PaymentMethod: Cash, Amount: 1, Description: "a"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	if err := bads[2].Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestNewExpenseStampsCreatedAt(t *testing.T) {
	before := time.Now().UTC()
	e := NewExpense(3, BankAccount, 10, "Books", before)
	if e.Persisted() {
		t.Fatalf("new expense must not be persisted")
	}
	if e.CreatedAt.Before(before) {
		t.Fatalf("CreatedAt %v is before %v", e.CreatedAt, before)
	}
}

func TestPaymentMethodRoundTrip(t *testing.T) {
	for _, pm := range PaymentMethods() {
		got, err := ParsePaymentMethod(pm.String())
		if err != nil {
			t.Fatalf("parse %q: %v", pm, err)
		}
		if got != pm {
			t.Fatalf("round trip %q: got %q", pm, got)
		}
	}
}

func TestParsePaymentMethodUnknown(t *testing.T) {
	for _, s := range []string{"", "cash", "CREDIT_CARD", "UNKNOWN"} {
		_, err := ParsePaymentMethod(s)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("%q: expected *DecodeError, got %v", s, err)
		}
		if de.Value != s || de.Column != "payment_method" {
			t.Fatalf("%q: unexpected decode error %+v", s, de)
		}
	}
}

func TestPaymentMethodLabel(t *testing.T) {
	if got := (PaymentMethod{}).Label(); got != "UNKNOWN" {
		t.Fatalf("zero label = %q", got)
	}
	if got := Cash.Label(); got != "CASH" {
		t.Fatalf("cash label = %q", got)
	}
	var pm PaymentMethod
	if err := pm.UnmarshalText([]byte("BANK_ACCOUNT")); err != nil || pm != BankAccount {
		t.Fatalf("unmarshal: pm=%v err=%v", pm, err)
	}
	if err := pm.UnmarshalText([]byte("nope")); err == nil {
		t.Fatalf("expected error for unknown text")
	}
}
