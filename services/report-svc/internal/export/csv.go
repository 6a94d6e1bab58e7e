// services/report-svc/internal/export/csv.go
package export

import (
	"bufio"
	"context"
	"io"
	"strings"

	"farmreport/services/report-svc/internal/domain"
)

// Separator разделитель полей; запятая занята десятичной частью
const Separator = ';'

// DelimitedTextStrategy выгрузка в CSV
type DelimitedTextStrategy struct {
	base
}

// NewDelimitedTextStrategy создаёт стратегию
func NewDelimitedTextStrategy(opts Options) *DelimitedTextStrategy {
	return &DelimitedTextStrategy{base{
		format:  domain.FormatDelimitedText,
		name:    "CSV",
		mime:    "text/csv; charset=utf-8",
		ext:     "csv",
		tempDir: opts.TempDir,
	}}
}

// delimitedWriter пишет строки, заключая каждое поле в кавычки
type delimitedWriter struct {
	w   *bufio.Writer
	sep byte
	err error
}

func newDelimitedWriter(w io.Writer, sep byte) *delimitedWriter {
	return &delimitedWriter{w: bufio.NewWriter(w), sep: sep}
}

func (dw *delimitedWriter) Write(record []string) {
	if dw.err != nil {
		return
	}
	for i, field := range record {
		if i > 0 {
			dw.w.WriteByte(dw.sep)
		}
		dw.w.WriteByte('"')
		dw.w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		dw.w.WriteByte('"')
	}
	// ошибки bufio.Writer липкие, достаточно последней
	dw.err = dw.w.WriteByte('\n')
}

func (dw *delimitedWriter) Flush() {
	if dw.err != nil {
		return
	}
	dw.err = dw.w.Flush()
}

func (dw *delimitedWriter) Error() error {
	return dw.err
}

// Export пишет заголовок из подписей колонок и по строке на запись
func (s *DelimitedTextStrategy) Export(ctx context.Context, doc TabularDocument, filename string) (*Artifact, error) {
	return s.render(ctx, doc, filename, func(w io.Writer) error {
		dw := newDelimitedWriter(w, Separator)
		dw.Write(doc.Layout.Labels())
		for _, row := range doc.Rows {
			dw.Write(row.Texts())
		}
		dw.Flush()
		return dw.Error()
	})
}
