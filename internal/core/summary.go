package core

import "sort"

// CategoryTotals is the income and expense sum for one category in a range.
type CategoryTotals struct {
	Category     string `json:"category"`
	IncomeTotal  Money  `json:"income_total"`
	ExpenseTotal Money  `json:"expense_total"`
}

// Summary aggregates cash entries over an inclusive date range.
type Summary struct {
	From         Date             `json:"-"`
	To           Date             `json:"-"`
	IncomeTotal  Money            `json:"income_total"`
	ExpenseTotal Money            `json:"expense_total"`
	Net          Money            `json:"net"`
	ByCategory   []CategoryTotals `json:"by_category"`
}

// NewSummary derives the range totals from per-category rows so the
// grand totals always equal the sum of the breakdown.
func NewSummary(from, to Date, rows []CategoryTotals) Summary {
	s := Summary{From: from, To: to, ByCategory: make([]CategoryTotals, 0, len(rows))}
	for _, r := range rows {
		s.IncomeTotal = s.IncomeTotal.Add(r.IncomeTotal)
		s.ExpenseTotal = s.ExpenseTotal.Add(r.ExpenseTotal)
		s.ByCategory = append(s.ByCategory, r)
	}
	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})
	s.Net = s.IncomeTotal.Sub(s.ExpenseTotal)
	return s
}

// SummarizeEntries totals entries in memory, so the result always matches
// the rows it was computed from.
func SummarizeEntries(from, to Date, entries []CashEntry) Summary {
	idx := make(map[string]int)
	var rows []CategoryTotals
	for _, e := range entries {
		i, ok := idx[e.Category]
		if !ok {
			i = len(rows)
			idx[e.Category] = i
			rows = append(rows, CategoryTotals{Category: e.Category})
		}
		switch e.Type {
		case Income:
			rows[i].IncomeTotal = rows[i].IncomeTotal.Add(e.Amount)
		case Expense:
			rows[i].ExpenseTotal = rows[i].ExpenseTotal.Add(e.Amount)
		}
	}
	return NewSummary(from, to, rows)
}

// ValidateRange rejects ranges whose start falls after their end.
func ValidateRange(from, to Date) error {
	if from.IsEmpty() || to.IsEmpty() {
		return Invalid("from", "from and to parameters required")
	}
	if from.After(to.Time) {
		return Invalid("from", "from must not be after to")
	}
	return nil
}
