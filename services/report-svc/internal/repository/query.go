package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"farmreport/pkg/textnorm"
)

// foldExpr приводит колонку к виду textnorm.Fold на стороне БД
func foldExpr(column string) string {
	from, to := textnorm.Pairs()
	return fmt.Sprintf("translate(lower(%s), %s, %s)", column, pq.QuoteLiteral(from), pq.QuoteLiteral(to))
}

// selectBuilder собирает SELECT с поиском, диапазоном дат и лимитом.
// Используется и плоскими, и сгруппированными запросами.
type selectBuilder struct {
	base    string
	where   []string
	args    []any
	groupBy string
	orderBy string
	limit   int
}

func newSelect(base string) *selectBuilder {
	return &selectBuilder{base: base}
}

func (b *selectBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// search добавляет OR-поиск подстроки без учёта регистра и диакритики
func (b *selectBuilder) search(term string, columns ...string) *selectBuilder {
	term = textnorm.Fold(term)
	if term == "" || len(columns) == 0 {
		return b
	}

	placeholder := b.arg(escapeLike(term))
	conds := make([]string, len(columns))
	for i, col := range columns {
		conds[i] = fmt.Sprintf("%s LIKE '%%' || %s || '%%'", foldExpr(col), placeholder)
	}
	b.where = append(b.where, "("+strings.Join(conds, " OR ")+")")
	return b
}

// dateRange фильтрует колонку по дням [from, to]
func (b *selectBuilder) dateRange(column string, from, to *time.Time) *selectBuilder {
	if from != nil {
		b.where = append(b.where, fmt.Sprintf("%s >= %s", column, b.arg(*from)))
	}
	if to != nil {
		b.where = append(b.where, fmt.Sprintf("%s < %s", column, b.arg(to.AddDate(0, 0, 1))))
	}
	return b
}

func (b *selectBuilder) group(expr string) *selectBuilder {
	b.groupBy = expr
	return b
}

func (b *selectBuilder) order(expr string) *selectBuilder {
	b.orderBy = expr
	return b
}

func (b *selectBuilder) limitTo(n int) *selectBuilder {
	b.limit = n
	return b
}

func (b *selectBuilder) build() (string, []any) {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(b.base))

	if len(b.where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.groupBy != "" {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(b.groupBy)
	}
	if b.orderBy != "" {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		sb.WriteString("\nLIMIT ")
		sb.WriteString(b.arg(b.limit))
	}

	return sb.String(), b.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
