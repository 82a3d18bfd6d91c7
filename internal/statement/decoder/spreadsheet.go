package decoder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	xlsCharset = "utf-8"
	xlsMaxRows = 100000
	// BIFF8 sheets have at most 256 columns
	xlsMaxCols = 256
)

func decodeXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return "", fmt.Errorf("xlsx has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to read xlsx sheet %q: %w", sheet, err)
	}
	return renderSheet(sheet, rows)
}

// decodeXLS renders the first sheet only, padded to the widest row like a grid
func decodeXLS(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to read xls: %v", r)
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data), xlsCharset)
	if err != nil {
		return "", fmt.Errorf("failed to open xls: %w", err)
	}
	if workbook == nil {
		return "", fmt.Errorf("xls has no workbook stream")
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return "", fmt.Errorf("xls has no sheets")
	}

	rowCount := int(sheet.MaxRow) + 1
	if rowCount > xlsMaxRows {
		rowCount = xlsMaxRows
	}
	rows := make([][]string, 0, rowCount)
	width := 0
	for i := 0; i < rowCount; i++ {
		cells := xlsRowCells(sheetRow(sheet, i))
		if len(cells) > width {
			width = len(cells)
		}
		rows = append(rows, cells)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]string, width-len(row))...)
		}
	}
	return renderSheet(sheet.Name, rows)
}

// sheetRow returns nil for row numbers the sheet never defined; xls panics on those
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func xlsRowCells(row *xls.Row) []string {
	if row == nil {
		return nil
	}
	last := row.LastCol()
	if last <= 0 || last >= xlsMaxCols {
		last = xlsMaxCols - 1
	}
	cells := make([]string, 0, last+1)
	for c := 0; c <= last; c++ {
		cells = append(cells, row.Col(c))
	}
	for len(cells) > 0 && strings.TrimSpace(cells[len(cells)-1]) == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

// renderSheet writes "Sheet: <name>" followed by the cell grid as CSV
func renderSheet(name string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
		}
		if err := writer.Write(cells); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return strings.TrimSpace(fmt.Sprintf("Sheet: %s\n%s", name, buf.String())), nil
}
