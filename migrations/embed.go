// Package migrations содержит SQL миграции служебных таблиц сервиса отчётов.
package migrations

import "embed"

// FS встроенные файлы миграций, каталог "."
//
//go:embed *.sql
var FS embed.FS
