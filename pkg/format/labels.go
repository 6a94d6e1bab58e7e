package format

import "strings"

// LabelTable переводит коды категорий в подписи
type LabelTable struct {
	labels map[string]string
	order  []string
}

// NewLabelTable создаёт таблицу; порядок кодов сохраняется для списков опций
func NewLabelTable(pairs ...[2]string) *LabelTable {
	t := &LabelTable{labels: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		code := strings.ToLower(p[0])
		if _, dup := t.labels[code]; !dup {
			t.order = append(t.order, code)
		}
		t.labels[code] = p[1]
	}
	return t
}

// Lookup возвращает подпись и признак того, что код известен
func (t *LabelTable) Lookup(code string) (string, bool) {
	label, ok := t.labels[strings.ToLower(strings.TrimSpace(code))]
	return label, ok
}

// Label возвращает подпись кода. Неизвестный код не отклоняется:
// он приводится к Title Case, "gado_de_corte" превращается в "Gado De Corte".
func (t *LabelTable) Label(l Locale, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if label, ok := t.Lookup(code); ok {
		return label
	}
	return fallbackLabel(l, code)
}

func fallbackLabel(l Locale, code string) string {
	return l.Title(strings.ToLower(strings.ReplaceAll(code, "_", " ")))
}

// Options возвращает пары код → подпись в порядке объявления
func (t *LabelTable) Options() []Option {
	out := make([]Option, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, Option{Value: code, Label: t.labels[code]})
	}
	return out
}

// Codes возвращает известные коды
func (t *LabelTable) Codes() []string {
	return append([]string(nil), t.order...)
}

// Option пара значение/подпись для фильтров
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
