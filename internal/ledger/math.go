package ledger

import "math"

// BalanceTolerance absorbs floating-point accumulation across line items.
// Any intended nonzero difference between the columns is a caller bug.
const BalanceTolerance = 0.01

// NormalSide identifies the side on which an account type's balance grows.
type NormalSide string

const (
	DebitNormal  NormalSide = "debit"
	CreditNormal NormalSide = "credit"
)

// NormalBalanceSide resolves the normal-balance convention for a type.
// Asset, expense and COGS accounts are debit-normal; liability, equity and
// revenue accounts are credit-normal.
func NormalBalanceSide(accountType AccountType) NormalSide {
	switch accountType {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCOGS:
		return DebitNormal
	default:
		return CreditNormal
	}
}

// BalanceDelta computes the signed balance change a debit/credit pair causes
// on an account of the given type.
func BalanceDelta(accountType AccountType, debit, credit float64) float64 {
	if NormalBalanceSide(accountType) == DebitNormal {
		return debit - credit
	}
	return credit - debit
}

// SumColumns totals the debit and credit columns of a line set.
func SumColumns(lines []LineItem) (debits, credits float64) {
	for _, line := range lines {
		debits += line.Debit
		credits += line.Credit
	}
	return debits, credits
}

// ValidateBalanced fails with ImbalanceError unless the columns agree within
// BalanceTolerance.
func ValidateBalanced(lines []LineItem) error {
	debits, credits := SumColumns(lines)
	if math.Abs(debits-credits) > BalanceTolerance {
		return &ImbalanceError{SumDebits: debits, SumCredits: credits}
	}
	return nil
}

// Inverse swaps debit and credit on every line. Re-applying the result
// through BalanceDelta yields the exact opposite balance effect, including
// for lines that carry both sides.
func Inverse(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i, line := range lines {
		inv := line
		inv.Debit, inv.Credit = line.Credit, line.Debit
		out[i] = inv
	}
	return out
}
