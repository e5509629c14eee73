package sheet

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"examcal/internal/apperr"
)

// headerScanRows bounds header auto-detection; real sheets carry at most a
// couple of title rows above the header.
const headerScanRows = 5

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ReadOptions controls how the first sheet is turned into a Table.
type ReadOptions struct {
	// HeaderRow is the 1-based header row. Zero auto-detects it: the first
	// of the leading rows that binds at least two fields, else row 2 (a
	// single title row above the header is the common layout).
	HeaderRow int
}

// Table is the first sheet of a workbook reduced to header-keyed rows.
type Table struct {
	Sheet     string
	HeaderRow int
	Headers   []string
	Columns   ColumnMap
	Rows      []RawRow
}

// ReadFile loads an .xlsx or .xls workbook from disk.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadWorkbook(data, opts)
}

// ReadWorkbook sniffs the container format and reads the first sheet.
func ReadWorkbook(data []byte, opts ReadOptions) (*Table, error) {
	var (
		name string
		rows [][]string
		err  error
	)
	switch {
	case bytes.HasPrefix(data, zipMagic):
		name, rows, err = readXLSX(data)
	case bytes.HasPrefix(data, oleMagic):
		name, rows, err = readXLS(data)
	default:
		return nil, apperr.New(apperr.Validation, "无法识别的表格文件格式，请上传 .xlsx 或 .xls 文件")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "考试安排表读取失败", err)
	}
	return buildTable(name, rows, opts)
}

func readXLSX(data []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("XLSX file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return sheets[0], rows, nil
}

func readXLS(data []byte) (string, [][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", nil, fmt.Errorf("xls open error: %w", err)
	}
	if wb.NumSheets() == 0 {
		return "", nil, fmt.Errorf("XLS file has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", nil, fmt.Errorf("XLS first sheet is unreadable")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		row := sheet.Row(r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return sheet.Name, rows, nil
}

func buildTable(sheetName string, rows [][]string, opts ReadOptions) (*Table, error) {
	if len(rows) == 0 {
		return nil, apperr.New(apperr.Validation, "考试安排表为空")
	}

	headerIdx := opts.HeaderRow - 1
	if opts.HeaderRow <= 0 {
		headerIdx = detectHeaderRow(rows)
	}
	if headerIdx >= len(rows) {
		return nil, apperr.New(apperr.Validation, fmt.Sprintf("表头行 %d 超出表格范围", headerIdx+1))
	}

	width := 0
	for _, r := range rows[headerIdx:] {
		width = max(width, len(r))
	}
	headers := headerNames(rows[headerIdx], width)

	t := &Table{
		Sheet:     sheetName,
		HeaderRow: headerIdx + 1,
		Headers:   headers,
		Columns:   ResolveColumns(headers),
		Rows:      make([]RawRow, 0, len(rows)-headerIdx-1),
	}

	for _, cells := range rows[headerIdx+1:] {
		row := make(RawRow)
		for i, v := range cells {
			if v = strings.TrimSpace(v); v != "" {
				row[headers[i]] = v
			}
		}
		if len(row) > 0 {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

func detectHeaderRow(rows [][]string) int {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if ResolveColumns(trimAll(rows[i])).Bound() >= 2 {
			return i
		}
	}
	if len(rows) > 1 {
		return 1
	}
	return 0
}

// headerNames de-duplicates header text: repeated names get the first free
// _1, _2 suffix and blank headers become __EMPTY, __EMPTY_1, ...
func headerNames(raw []string, width int) []string {
	used := make(map[string]bool, width)
	next := make(map[string]int)
	out := make([]string, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(raw) {
			name = strings.TrimSpace(raw[i])
		}
		if name == "" {
			name = "__EMPTY"
		}
		unique := name
		for used[unique] {
			next[name]++
			unique = fmt.Sprintf("%s_%d", name, next[name])
		}
		used[unique] = true
		out[i] = unique
	}
	return out
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
