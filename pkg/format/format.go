// Package format renders numbers, dates and category codes for reports.
// All functions take an explicit Locale so output never depends on process state.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"farmreport/pkg/config"
)

// Locale описывает правила форматирования
type Locale struct {
	Tag            language.Tag
	DecimalSep     string
	ThousandsSep   string
	DateLayout     string
	DateTimeLayout string
	Location       *time.Location
}

// DefaultLocale возвращает pt-BR: "1.234,56", "16/10/2026"
func DefaultLocale() Locale {
	return Locale{
		Tag:            language.BrazilianPortuguese,
		DecimalSep:     ",",
		ThousandsSep:   ".",
		DateLayout:     "02/01/2006",
		DateTimeLayout: "02/01/2006 15:04",
		Location:       time.UTC,
	}
}

// NewLocale строит Locale из конфигурации
func NewLocale(cfg config.LocaleConfig) (Locale, error) {
	l := DefaultLocale()

	if cfg.Language != "" {
		tag, err := language.Parse(cfg.Language)
		if err != nil {
			return Locale{}, fmt.Errorf("parse language %q: %w", cfg.Language, err)
		}
		l.Tag = tag
	}
	if cfg.DecimalSeparator != "" {
		l.DecimalSep = cfg.DecimalSeparator
	}
	l.ThousandsSep = cfg.ThousandsSeparator
	if cfg.DateLayout != "" {
		l.DateLayout = cfg.DateLayout
	}
	if cfg.DateTimeLayout != "" {
		l.DateTimeLayout = cfg.DateTimeLayout
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Locale{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		l.Location = loc
	}

	return l, nil
}

// Integer форматирует целое с разделителем тысяч
func (l Locale) Integer(n int64) string {
	return l.Decimal(decimal.NewFromInt(n), 0)
}

// Float форматирует число с фиксированным количеством знаков
func (l Locale) Float(f float64, places int32) string {
	return l.Decimal(decimal.NewFromFloat(f), places)
}

// Decimal форматирует decimal с фиксированным количеством знаков
func (l Locale) Decimal(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart, l.ThousandsSep))
	if places > 0 {
		b.WriteString(l.DecimalSep)
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Date форматирует дату как dd/mm/yyyy; нулевое время даёт пустую строку
func (l Locale) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(l.location()).Format(l.DateLayout)
}

// DateTime форматирует дату и время
func (l Locale) DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(l.location()).Format(l.DateTimeLayout)
}

func (l Locale) location() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

// Title переводит строку в Title Case по правилам языка локали
func (l Locale) Title(s string) string {
	// cases.Caser хранит состояние, поэтому создаётся на каждый вызов
	return cases.Title(l.Tag).String(s)
}
