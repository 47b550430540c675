package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatText  Format = "txt"
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
)

// FormatOf picks the row format from a file name extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".lst", "":
		return FormatText, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
}

// ReadRows returns up to maxRows rows (all rows when maxRows <= 0) with cells trimmed. Text
// files hold one tab-separated row per line; blank lines and lines starting with # are skipped.
// Excel files are read from their first sheet.
func ReadRows(r io.Reader, format Format, maxRows int) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatText:
		rows, err = readText(r, maxRows)
	case FormatCSV:
		rows, err = readCSV(r, maxRows)
	case FormatExcel:
		rows, err = readExcel(r, maxRows)
	default:
		return nil, fmt.Errorf("unsupported row format %q", format)
	}
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, nil
}

func readText(r io.Reader, maxRows int) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text rows: %w", err)
	}
	var rows [][]string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
		if maxRows > 0 && len(rows) == maxRows {
			break
		}
	}
	return rows, nil
}

func readCSV(r io.Reader, maxRows int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for maxRows <= 0 || len(rows) < maxRows {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv rows: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readExcel(r io.Reader, maxRows int) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out = append(out, row)
		if maxRows > 0 && len(out) == maxRows {
			break
		}
	}
	return out, nil
}
