package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"

	// Labels used on the remote tables for the two transaction types.
	ExpenseLabel = "支出"
	IncomeLabel  = "收入"

	// SavingsMaxDay is the last day of the 365-day savings challenge.
	SavingsMaxDay = 365

	// SavingsTarget is the total saved when every challenge day is done
	// (day N contributes N units, so 1+2+...+365).
	SavingsTarget = SavingsMaxDay * (SavingsMaxDay + 1) / 2
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCategory     = errors.New("empty category")
	ErrUnknownCategory   = errors.New("category not in active list")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrInvalidDay        = errors.New("savings day out of range")
)

type (
	TransactionType string

	// Transaction is one ledger entry. Date is the user-assigned ledger
	// date (YYYY-MM-DD); CreatedAt is the recording timestamp (ISO-8601).
	Transaction struct {
		ID        string          `json:"id"`
		Date      string          `json:"date"`
		CreatedAt string          `json:"createdAt"`
		Type      TransactionType `json:"type"`
		Category  string          `json:"category"`
		Amount    float64         `json:"amount"`
		Note      string          `json:"note"`
	}

	// SavingsState tracks which challenge days have been marked done.
	SavingsState struct {
		CompletedDays []int `json:"completedDays"`
	}

	// Snapshot is the complete working state: everything the local store
	// persists and everything a full sync push carries.
	Snapshot struct {
		Transactions      []Transaction `json:"transactions"`
		ExpenseCategories []string      `json:"expenseCategories"`
		IncomeCategories  []string      `json:"incomeCategories"`
		Savings           SavingsState  `json:"savings"`
	}
)

// DefaultExpenseCategories seeds the expense list when nothing is persisted.
func DefaultExpenseCategories() []string {
	return []string{"食物", "交通", "購物", "娛樂", "醫療", "其他"}
}

// DefaultIncomeCategories seeds the income list when nothing is persisted.
func DefaultIncomeCategories() []string {
	return []string{"薪水", "獎金", "投資", "其他"}
}

// IsValid reports whether t is one of the two recognized types.
func (t TransactionType) IsValid() bool {
	return t == Expense || t == Income
}

// Label returns the remote table label for the type.
func (t TransactionType) Label() string {
	if t == Income {
		return IncomeLabel
	}
	return ExpenseLabel
}

// TypeFromLabel maps a remote table label back to a transaction type.
func TypeFromLabel(label string) (TransactionType, bool) {
	switch label {
	case ExpenseLabel:
		return Expense, true
	case IncomeLabel:
		return Income, true
	default:
		return "", false
	}
}

// NewTransaction validates user input and builds a complete entry with a
// generated id and the current recording timestamp. The category must be
// non-empty and present in the active list for the given type at creation
// time; it is not re-validated afterwards (renamed or removed categories
// orphan old entries, which is accepted).
func NewTransaction(typ TransactionType, date, category string, amount float64, note string, activeCategories []string) (Transaction, error) {
	if !typ.IsValid() {
		return Transaction{}, ErrInvalidType
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return Transaction{}, ErrInvalidDate
	}
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return Transaction{}, ErrEmptyCategory
	}
	found := false
	for _, c := range activeCategories {
		if c == category {
			found = true
			break
		}
	}
	if !found {
		return Transaction{}, ErrUnknownCategory
	}
	return Transaction{
		ID:        uuid.NewString(),
		Date:      date,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Type:      typ,
		Category:  category,
		Amount:    amount,
		Note:      note,
	}, nil
}

// Total is the derived cumulative saved amount: day N contributes N units.
func (s SavingsState) Total() int {
	sum := 0
	for _, d := range s.CompletedDays {
		sum += d
	}
	return sum
}

// Contains reports whether the given day is marked done.
func (s SavingsState) Contains(day int) bool {
	for _, d := range s.CompletedDays {
		if d == day {
			return true
		}
	}
	return false
}

// Toggle returns a new state with the day added (kept sorted) or removed.
func (s SavingsState) Toggle(day int) (SavingsState, error) {
	if day < 1 || day > SavingsMaxDay {
		return s, ErrInvalidDay
	}
	out := make([]int, 0, len(s.CompletedDays)+1)
	removed := false
	inserted := false
	for _, d := range s.CompletedDays {
		if d == day {
			removed = true
			continue
		}
		if !removed && !inserted && d > day {
			out = append(out, day)
			inserted = true
		}
		out = append(out, d)
	}
	if !removed && !inserted {
		out = append(out, day)
	}
	return SavingsState{CompletedDays: out}, nil
}

// Clone deep-copies the snapshot so fire-and-forget pushes carry the state
// exactly as captured at mutation time.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Transactions:      append([]Transaction(nil), s.Transactions...),
		ExpenseCategories: append([]string(nil), s.ExpenseCategories...),
		IncomeCategories:  append([]string(nil), s.IncomeCategories...),
	}
	out.Savings.CompletedDays = append([]int(nil), s.Savings.CompletedDays...)
	return out
}

// AddCategory appends name to the list, enforcing per-list uniqueness.
func AddCategory(list []string, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return list, ErrEmptyCategory
	}
	for _, c := range list {
		if c == name {
			return list, ErrDuplicateCategory
		}
	}
	return append(list, name), nil
}

// RemoveCategory drops name from the list. Transactions referencing the
// name are left untouched; there is no foreign-key enforcement.
func RemoveCategory(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		if c != name {
			out = append(out, c)
		}
	}
	return out
}
