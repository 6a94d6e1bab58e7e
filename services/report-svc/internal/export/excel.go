// services/report-svc/internal/export/excel.go
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"farmreport/services/report-svc/internal/domain"
)

// Раскладка листа: баннер, пустая строка, шапка, данные
const (
	titleRow     = 1
	subtitleRow  = 2
	headerRow    = 4
	firstDataRow = 5

	maxSheetName = 31
	defaultWidth = 15
)

// SpreadsheetStrategy выгрузка в XLSX
type SpreadsheetStrategy struct {
	base
}

// NewSpreadsheetStrategy создаёт стратегию
func NewSpreadsheetStrategy(opts Options) *SpreadsheetStrategy {
	return &SpreadsheetStrategy{base{
		format:  domain.FormatSpreadsheet,
		name:    "Excel",
		mime:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ext:     "xlsx",
		tempDir: opts.TempDir,
	}}
}

// Export строит книгу с одним листом
func (s *SpreadsheetStrategy) Export(ctx context.Context, doc TabularDocument, filename string) (*Artifact, error) {
	return s.render(ctx, doc, filename, func(w io.Writer) error {
		f, err := buildWorkbook(doc)
		if err != nil {
			return err
		}
		defer f.Close()
		return f.Write(w)
	})
}

// sheetStyles идентификаторы стилей книги
type sheetStyles struct {
	title    int
	subtitle int
	header   int
	// [полоса][вид колонки]
	cells [2]map[domain.ColumnKind]int
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	var (
		st  sheetStyles
		err error
	)

	if st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "1F3864"},
	}); err != nil {
		return nil, err
	}

	if st.subtitle, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Size: 10, Color: "595959"},
	}); err != nil {
		return nil, err
	}

	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    []excelize.Border{{Type: "bottom", Color: "1F3864", Style: 1}},
	}); err != nil {
		return nil, err
	}

	kinds := []domain.ColumnKind{domain.KindText, domain.KindInteger, domain.KindDecimal, domain.KindDate}
	for stripe := range st.cells {
		st.cells[stripe] = make(map[domain.ColumnKind]int, len(kinds))
		for _, kind := range kinds {
			id, err := f.NewStyle(cellStyle(kind, stripe == 1))
			if err != nil {
				return nil, err
			}
			st.cells[stripe][kind] = id
		}
	}

	return &st, nil
}

func cellStyle(kind domain.ColumnKind, shaded bool) *excelize.Style {
	style := &excelize.Style{
		Border: []excelize.Border{{Type: "bottom", Color: "D9D9D9", Style: 1}},
	}
	if shaded {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{"DCE6F1"}, Pattern: 1}
	}

	switch kind {
	case domain.KindInteger:
		style.NumFmt = 3 // #,##0
		style.Alignment = &excelize.Alignment{Horizontal: "right"}
	case domain.KindDecimal:
		style.NumFmt = 4 // #,##0.00
		style.Alignment = &excelize.Alignment{Horizontal: "right"}
	case domain.KindDate:
		style.Alignment = &excelize.Alignment{Horizontal: "center"}
	}
	return style
}

// sheetWriter запоминает первую ошибку excelize
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (sw *sheetWriter) value(col, row int, v any) {
	if sw.err != nil {
		return
	}
	sw.err = sw.f.SetCellValue(sw.sheet, cellAddr(col, row), v)
}

func (sw *sheetWriter) style(fromCol, toCol, row, style int) {
	if sw.err != nil {
		return
	}
	sw.err = sw.f.SetCellStyle(sw.sheet, cellAddr(fromCol, row), cellAddr(toCol, row), style)
}

func (sw *sheetWriter) merge(fromCol, toCol, row int) {
	if sw.err != nil || toCol <= fromCol {
		return
	}
	sw.err = sw.f.MergeCell(sw.sheet, cellAddr(fromCol, row), cellAddr(toCol, row))
}

func (sw *sheetWriter) width(col int, width float64) {
	if sw.err != nil {
		return
	}
	name := columnName(col)
	sw.err = sw.f.SetColWidth(sw.sheet, name, name, width)
}

func (sw *sheetWriter) height(row int, height float64) {
	if sw.err != nil {
		return
	}
	sw.err = sw.f.SetRowHeight(sw.sheet, row, height)
}

func buildWorkbook(doc TabularDocument) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := sheetName(doc.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create styles: %w", err)
	}

	columns := doc.Layout.Columns
	last := len(columns)
	if last == 0 {
		last = 1
	}

	sw := &sheetWriter{f: f, sheet: sheet}

	// Баннер
	sw.value(1, titleRow, doc.Title)
	sw.merge(1, last, titleRow)
	sw.style(1, last, titleRow, styles.title)
	sw.height(titleRow, 22)

	if doc.Subtitle != "" {
		sw.value(1, subtitleRow, doc.Subtitle)
		sw.merge(1, last, subtitleRow)
		sw.style(1, last, subtitleRow, styles.subtitle)
	}

	// Шапка и ширины
	for i, col := range columns {
		sw.value(i+1, headerRow, col.Label)
		width := col.Width
		if width <= 0 {
			width = defaultWidth
		}
		sw.width(i+1, width)
	}
	if len(columns) > 0 {
		sw.style(1, len(columns), headerRow, styles.header)
		sw.height(headerRow, 20)
	}

	// Данные с чередованием заливки
	for i, row := range doc.Rows {
		r := firstDataRow + i
		stripe := i % 2
		for j, col := range columns {
			if j >= len(row) {
				break
			}
			sw.value(j+1, r, cellValue(col, row[j]))
			sw.style(j+1, j+1, r, styles.cells[stripe][col.Kind])
		}
	}

	if sw.err != nil {
		f.Close()
		return nil, fmt.Errorf("fill sheet: %w", sw.err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellAddr(1, firstDataRow),
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	return f, nil
}

// cellValue числовые колонки пишутся числом, остальные текстом
func cellValue(col domain.Column, cell domain.Cell) any {
	if col.Kind.Numeric() && cell.Text != "" {
		if col.Kind == domain.KindInteger {
			return int64(cell.Value)
		}
		return cell.Value
	}
	return cell.Text
}

func cellAddr(col, row int) string {
	return fmt.Sprintf("%s%d", columnName(col), row)
}

func columnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return "A"
	}
	return name
}

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// sheetName приводит заголовок к допустимому имени листа
func sheetName(title string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if name == "" {
		return "Relatorio"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = strings.TrimSpace(string(r[:maxSheetName]))
	}
	return name
}
