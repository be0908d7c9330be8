// Package export renders ledger data as xlsx workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type column struct {
	title string
	width float64
	money bool
}

// LoansGiven writes one row per loan with its repayment totals.
func LoansGiven(w io.Writer, loans []core.LoanGivenBalance) error {
	cols := []column{
		{"Borrower", 24, false}, {"Amount", 14, true}, {"Due date", 12, false},
		{"Reminder", 12, false}, {"Status", 12, false}, {"Total paid", 14, true},
		{"Remaining", 14, true}, {"Notes", 40, false},
	}
	rows := make([][]any, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []any{
			l.BorrowerName, money(l.Amount), l.DueDate.String(), l.ReminderDate.String(),
			l.Status, money(l.TotalPaid), money(l.Remaining), text(l.Notes),
		})
	}
	return write(w, "Loans given", cols, rows)
}

// LoansToPay writes one row per loan with its outstanding principal.
func LoansToPay(w io.Writer, loans []core.LoanToPay) error {
	cols := []column{
		{"Lender", 24, false}, {"Original principal", 18, true}, {"Current principal", 18, true},
		{"Interest rate %", 14, false}, {"Due date", 12, false}, {"Status", 12, false}, {"Notes", 40, false},
	}
	rows := make([][]any, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []any{
			l.LenderName, money(l.OriginalPrincipal), money(l.CurrentPrincipal),
			l.InterestRate.InexactFloat64(), l.DueDate.String(), l.Status, text(l.Notes),
		})
	}
	return write(w, "Loans to pay", cols, rows)
}

// Entries writes the cash entries of a range followed by a totals row.
func Entries(w io.Writer, entries []core.CashEntry, summary core.Summary) error {
	cols := []column{
		{"Date", 12, false}, {"Type", 10, false}, {"Category", 20, false},
		{"Amount", 14, true}, {"Note", 40, false},
	}
	rows := make([][]any, 0, len(entries)+3)
	for _, e := range entries {
		rows = append(rows, []any{e.Date.String(), string(e.Type), e.Category, money(e.Amount), text(e.Note)})
	}
	rows = append(rows,
		[]any{"", string(core.Income), "Total", money(summary.IncomeTotal), ""},
		[]any{"", string(core.Expense), "Total", money(summary.ExpenseTotal), ""},
		[]any{"", "", "Net", money(summary.Net), ""},
	)
	return write(w, "Entries", cols, rows)
}

func money(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func write(w io.Writer, sheet string, cols []column, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.title
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	for i, c := range cols {
		if !c.money || len(rows) == 0 {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(i+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(i+1, len(rows)+1)
		if err := f.SetCellStyle(sheet, top, bottom, moneyStyle); err != nil {
			return fmt.Errorf("style money column: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
