package core

// PaymentMethod is the closed set of ways an expense can be paid.
// The zero value is not a valid method.
type PaymentMethod struct {
	tag uint8
}

const (
	pmInvalid uint8 = iota
	pmCash
	pmBankAccount
)

var (
	Cash        = PaymentMethod{tag: pmCash}
	BankAccount = PaymentMethod{tag: pmBankAccount}
)

// PaymentMethods lists every valid method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{Cash, BankAccount}
}

// ParsePaymentMethod decodes the stored textual name.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "CASH":
		return Cash, nil
	case "BANK_ACCOUNT":
		return BankAccount, nil
	}
	return PaymentMethod{}, &DecodeError{Column: "payment_method", Value: s}
}

// Valid reports whether pm is one of the known methods.
func (pm PaymentMethod) Valid() bool {
	return pm.tag == pmCash || pm.tag == pmBankAccount
}

// String returns the stored name, or "" for the zero value.
func (pm PaymentMethod) String() string {
	switch pm.tag {
	case pmCash:
		return "CASH"
	case pmBankAccount:
		return "BANK_ACCOUNT"
	}
	return ""
}

// Label is the display text; unknown methods render as "UNKNOWN".
func (pm PaymentMethod) Label() string {
	if !pm.Valid() {
		return "UNKNOWN"
	}
	return pm.String()
}

// MarshalText implements encoding.TextMarshaler.
func (pm PaymentMethod) MarshalText() ([]byte, error) {
	return []byte(pm.Label()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pm *PaymentMethod) UnmarshalText(b []byte) error {
	parsed, err := ParsePaymentMethod(string(b))
	if err != nil {
		return err
	}
	*pm = parsed
	return nil
}
