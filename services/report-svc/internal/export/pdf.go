// services/report-svc/internal/export/pdf.go
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"farmreport/services/report-svc/internal/domain"
)

// gridSize ширина сетки страницы в долях
const gridSize = 24

const emptyDocumentText = "Nenhum registro encontrado"

// Цвета
var (
	headerBgColor  = &props.Color{Red: 68, Green: 114, Blue: 196}  // #4472c4
	titleColor     = &props.Color{Red: 31, Green: 56, Blue: 100}   // #1f3864
	stripeColor    = &props.Color{Red: 220, Green: 230, Blue: 241} // #dce6f1
	lightGrayColor = &props.Color{Red: 217, Green: 217, Blue: 217} // #d9d9d9
	darkGrayColor  = &props.Color{Red: 89, Green: 89, Blue: 89}    // #595959
	whiteColor     = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// DocumentStrategy выгрузка в PDF: альбомный A4, та же сетка, что и в xlsx
type DocumentStrategy struct {
	base
	opts PDFOptions
}

// NewDocumentStrategy создаёт стратегию
func NewDocumentStrategy(opts Options) *DocumentStrategy {
	pdf := opts.PDF
	if pdf.FontSize <= 0 {
		pdf.FontSize = DefaultPDFOptions().FontSize
	}
	if pdf.TitleFontSize <= 0 {
		pdf.TitleFontSize = DefaultPDFOptions().TitleFontSize
	}
	return &DocumentStrategy{
		base: base{
			format:  domain.FormatDocument,
			name:    "PDF",
			mime:    "application/pdf",
			ext:     "pdf",
			tempDir: opts.TempDir,
		},
		opts: pdf,
	}
}

// Export строит документ и пишет его во временный файл
func (s *DocumentStrategy) Export(ctx context.Context, doc TabularDocument, filename string) (*Artifact, error) {
	return s.render(ctx, doc, filename, func(w io.Writer) error {
		data, err := s.generate(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func (s *DocumentStrategy) generate(doc TabularDocument) ([]byte, error) {
	builder := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageSize(pagesize.A4).
		WithMaxGridSize(gridSize).
		WithTopMargin(s.opts.MarginTop).
		WithLeftMargin(s.opts.MarginLeft).
		WithRightMargin(s.opts.MarginRight)
	if s.opts.PageNumbers {
		builder = builder.WithPageNumber()
	}

	m := maroto.New(builder.Build())

	s.addBanner(m, doc)
	s.addTable(m, doc.Layout, doc.Rows)

	pdf, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdf.GetBytes(), nil
}

func (s *DocumentStrategy) addBanner(m core.Maroto, doc TabularDocument) {
	m.AddRow(12,
		text.NewCol(gridSize, doc.Title, props.Text{
			Size:  s.opts.TitleFontSize,
			Style: fontstyle.Bold,
			Color: titleColor,
		}),
	)
	if doc.Subtitle != "" {
		m.AddRow(6,
			text.NewCol(gridSize, doc.Subtitle, props.Text{
				Size:  s.opts.FontSize,
				Style: fontstyle.Italic,
				Color: darkGrayColor,
			}),
		)
	}
	m.AddRow(4,
		line.NewCol(gridSize, props.Line{Color: lightGrayColor}),
	)
}

func (s *DocumentStrategy) addTable(m core.Maroto, layout domain.Layout, rows []domain.Row) {
	spans := columnSpans(layout.Columns)

	headerText := props.Text{
		Size:  s.opts.FontSize,
		Style: fontstyle.Bold,
		Color: whiteColor,
		Align: align.Center,
		Top:   1.5,
	}
	headerCell := &props.Cell{BackgroundColor: headerBgColor}

	header := make([]core.Col, len(layout.Columns))
	for i, col := range layout.Columns {
		header[i] = text.NewCol(spans[i], col.Label, headerText).WithStyle(headerCell)
	}
	m.AddRow(8, header...)

	if len(rows) == 0 {
		m.AddRow(8,
			text.NewCol(gridSize, emptyDocumentText, props.Text{
				Size:  s.opts.FontSize,
				Color: darkGrayColor,
				Align: align.Center,
				Top:   2,
			}),
		)
		return
	}

	plain := &props.Cell{BorderType: border.Bottom, BorderColor: lightGrayColor}
	shaded := &props.Cell{BackgroundColor: stripeColor, BorderType: border.Bottom, BorderColor: lightGrayColor}

	for i, row := range rows {
		style := plain
		if i%2 == 1 {
			style = shaded
		}

		cols := make([]core.Col, len(layout.Columns))
		for j, col := range layout.Columns {
			var value string
			if j < len(row) {
				value = row[j].Text
			}
			cols[j] = text.NewCol(spans[j], value, s.cellText(col.Kind)).WithStyle(style)
		}
		m.AddRow(7, cols...)
	}
}

func (s *DocumentStrategy) cellText(kind domain.ColumnKind) props.Text {
	t := props.Text{Size: s.opts.FontSize, Top: 1.5, Left: 1, Right: 1}
	switch {
	case kind.Numeric():
		t.Align = align.Right
	case kind == domain.KindDate:
		t.Align = align.Center
	default:
		t.Align = align.Left
	}
	return t
}

// columnSpans берёт Span из раскладки; если сумма не равна сетке, делит поровну
func columnSpans(columns []domain.Column) []int {
	spans := make([]int, len(columns))
	if len(columns) == 0 {
		return spans
	}

	total := 0
	for i, c := range columns {
		spans[i] = c.Span
		total += c.Span
	}
	if total == gridSize {
		return spans
	}

	each := gridSize / len(columns)
	if each == 0 {
		each = 1
	}
	rest := gridSize - each*len(columns)
	for i := range spans {
		spans[i] = each
		if rest > 0 {
			spans[i]++
			rest--
		}
	}
	return spans
}
