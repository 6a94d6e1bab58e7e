package domain

// ColumnKind тип значения колонки
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindDecimal
	KindDate
)

// Numeric true для колонок с числовым значением
func (k ColumnKind) Numeric() bool {
	return k == KindInteger || k == KindDecimal
}

// Column колонка отчёта
type Column struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Kind  ColumnKind `json:"kind"`
	Width float64    `json:"-"` // ширина в символах для xlsx
	Span  int        `json:"-"` // доля сетки pdf
}

// Layout фиксированный набор колонок отчёта
type Layout struct {
	ID      string
	Title   string
	Columns []Column
}

// Labels подписи колонок по порядку
func (l Layout) Labels() []string {
	out := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		out[i] = c.Label
	}
	return out
}

// Keys ключи колонок по порядку
func (l Layout) Keys() []string {
	out := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		out[i] = c.Key
	}
	return out
}

// Cell отформатированное значение; Value заполнено для числовых колонок
type Cell struct {
	Key   string  `json:"key"`
	Text  string  `json:"text"`
	Value float64 `json:"value,omitempty"`
}

// Row строка отчёта, одна ячейка на колонку раскладки
type Row []Cell

// Texts значения ячеек по порядку
func (r Row) Texts() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Text
	}
	return out
}

// Map представление строки как ключ → текст
func (r Row) Map() map[string]string {
	out := make(map[string]string, len(r))
	for _, c := range r {
		out[c.Key] = c.Text
	}
	return out
}

// RowBuilder собирает строку строго в порядке колонок раскладки
type RowBuilder struct {
	layout Layout
	cells  map[string]Cell
}

// NewRow начинает строку для раскладки
func (l Layout) NewRow() *RowBuilder {
	return &RowBuilder{layout: l, cells: make(map[string]Cell, len(l.Columns))}
}

// Text задаёт текстовую ячейку
func (b *RowBuilder) Text(key, text string) *RowBuilder {
	b.cells[key] = Cell{Key: key, Text: text}
	return b
}

// Number задаёт числовую ячейку
func (b *RowBuilder) Number(key, text string, value float64) *RowBuilder {
	b.cells[key] = Cell{Key: key, Text: text, Value: value}
	return b
}

// Build возвращает строку; незаданные колонки получают пустое значение
func (b *RowBuilder) Build() Row {
	row := make(Row, len(b.layout.Columns))
	for i, col := range b.layout.Columns {
		cell, ok := b.cells[col.Key]
		if !ok {
			cell = Cell{Key: col.Key}
		}
		row[i] = cell
	}
	return row
}
