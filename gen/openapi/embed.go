package openapi

import (
	"embed"
)

//go:embed reports.openapi.json
var content embed.FS

// GetSpec возвращает содержимое OpenAPI документа API отчётов
func GetSpec() ([]byte, error) {
	return content.ReadFile("reports.openapi.json")
}

// MustGetSpec возвращает документ или паникует
func MustGetSpec() []byte {
	data, err := GetSpec()
	if err != nil {
		panic("failed to load OpenAPI spec: " + err.Error())
	}
	return data
}
