// Package export renders ledger data as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"contabilidad/internal/core"
)

const (
	SummarySheet = "Resumen"
	EntriesSheet = "Movimientos"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	summaryHeaders = []string{"Fecha", "Ingresos", "Gastos", "Balance", "Nº ingresos", "Nº gastos"}
	entryHeaders   = []string{"Fecha", "Tipo", "Etiqueta", "Importe", "Recurrente"}
)

// Filename returns the download name of a month workbook.
func Filename(year, month int) string {
	return fmt.Sprintf("contabilidad-%04d-%02d.xlsx", year, month)
}

// MonthWorkbook builds a workbook with one summary row per day plus a totals
// row, and a second sheet listing every income and expense of the month.
func MonthWorkbook(sum core.MonthSummary, days []*core.Day) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(EntriesSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := writeHeader(f, SummarySheet, summaryHeaders, bold); err != nil {
		return nil, err
	}
	if err := writeHeader(f, EntriesSheet, entryHeaders, bold); err != nil {
		return nil, err
	}

	row := 2
	for _, d := range sum.Days {
		if err := setRow(f, SummarySheet, row, []any{
			d.Date.String(), amount(d.IncomeTotal), amount(d.ExpenseTotal), amount(d.Balance),
			d.IncomeCount, d.ExpenseCount,
		}); err != nil {
			return nil, err
		}
		row++
	}
	if err := setRow(f, SummarySheet, row, []any{
		"Total", amount(sum.IncomeTotal), amount(sum.ExpenseTotal), amount(sum.Balance),
	}); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(SummarySheet, row, row, bold); err != nil {
		return nil, err
	}

	row = 2
	for _, d := range days {
		for _, in := range d.Incomes {
			if err := setRow(f, EntriesSheet, row, []any{
				d.Date.String(), string(core.CategoryIncome), in.Tag, amount(in.Amount), "",
			}); err != nil {
				return nil, err
			}
			row++
		}
		for _, ex := range d.Expenses {
			recurring := ""
			if ex.IsRecurring {
				recurring = "sí"
			}
			if err := setRow(f, EntriesSheet, row, []any{
				d.Date.String(), string(core.CategoryExpense), ex.Tag, amount(ex.Amount), recurring,
			}); err != nil {
				return nil, err
			}
			row++
		}
	}

	for _, sheet := range []string{SummarySheet, EntriesSheet} {
		if err := f.SetColWidth(sheet, "A", "A", 12); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, "B", "F", 14); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteMonth streams the month workbook to w.
func WriteMonth(w io.Writer, sum core.MonthSummary, days []*core.Day) error {
	f, err := MonthWorkbook(sum, days)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, 1, 1, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// amount keeps two decimals exact in the cell value.
func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
