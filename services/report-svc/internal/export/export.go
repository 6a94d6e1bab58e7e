// services/report-svc/internal/export/export.go
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"farmreport/pkg/apperror"
	"farmreport/pkg/telemetry"
	"farmreport/services/report-svc/internal/domain"
)

// TabularDocument промежуточное представление отчёта для всех форматов
type TabularDocument struct {
	Title    string
	Subtitle string
	Layout   domain.Layout
	Rows     []domain.Row
}

// Strategy сериализует документ в файл одного формата
type Strategy interface {
	Export(ctx context.Context, doc TabularDocument, filename string) (*Artifact, error)
	Format() domain.Format
	FormatName() string
	MIMEType() string
	Extension() string
}

// Options общие настройки стратегий
type Options struct {
	TempDir string // пусто - os.TempDir()
	PDF     PDFOptions
}

// PDFOptions параметры страницы документа
type PDFOptions struct {
	MarginTop     float64
	MarginLeft    float64
	MarginRight   float64
	FontSize      float64
	TitleFontSize float64
	PageNumbers   bool
}

// DefaultPDFOptions значения по умолчанию
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		MarginTop:     10,
		MarginLeft:    10,
		MarginRight:   10,
		FontSize:      8,
		TitleFontSize: 14,
		PageNumbers:   true,
	}
}

// Artifact готовый файл во временном каталоге. Close удаляет файл.
type Artifact struct {
	Filename string
	MIMEType string
	Size     int64
	Records  int

	path      string
	closeOnce sync.Once
	closeErr  error
}

// Path путь к временному файлу
func (a *Artifact) Path() string { return a.path }

// Open открывает файл на чтение
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.path)
}

// Bytes читает файл целиком
func (a *Artifact) Bytes() ([]byte, error) {
	return os.ReadFile(a.path)
}

// WriteTo копирует содержимое в w
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	f, err := a.Open()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Close удаляет временный файл; повторный вызов ничего не делает
func (a *Artifact) Close() error {
	a.closeOnce.Do(func() {
		err := os.Remove(a.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.closeErr = err
		}
	})
	return a.closeErr
}

// base общая часть стратегий
type base struct {
	format  domain.Format
	name    string
	mime    string
	ext     string
	tempDir string
}

func (b base) Format() domain.Format { return b.format }
func (b base) FormatName() string    { return b.name }
func (b base) MIMEType() string      { return b.mime }
func (b base) Extension() string     { return b.ext }

// render пишет документ во временный файл и собирает артефакт
func (b base) render(ctx context.Context, doc TabularDocument, filename string, write func(io.Writer) error) (*Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "Export."+b.name,
		telemetry.WithAttributes(telemetry.ReportAttributes(doc.Layout.ID, string(b.format))...))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTimeout, "export cancelled")
	}

	if filename == "" {
		filename = doc.Layout.ID + "." + b.ext
	}

	path, size, err := writeTemp(b.tempDir, "."+b.ext, write)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeRenderFailed, fmt.Sprintf("failed to render %s", b.name)).
			WithDetails("report_type", doc.Layout.ID).
			WithDetails("format", string(b.format))
	}

	telemetry.SetAttributes(ctx, telemetry.ArtifactAttributes(filename, len(doc.Rows), size)...)
	return &Artifact{
		Filename: filename,
		MIMEType: b.mime,
		Size:     size,
		Records:  len(doc.Rows),
		path:     path,
	}, nil
}

// countingWriter считает записанные байты
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeTemp(dir, ext string, write func(io.Writer) error) (string, int64, error) {
	f, err := os.CreateTemp(dir, "report-*"+ext)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	cw := &countingWriter{w: f}
	werr := write(cw)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return "", 0, err
	}
	return f.Name(), cw.n, nil
}
