package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// GenerateKey строит ключ "prefix:module:operation:hash".
// hash считается по параметрам, отсортированным по имени, поэтому порядок
// вставки в map не влияет на результат. module и operation экранируются,
// чтобы ":" и "*" не ломали выборку по префиксу модуля.
func GenerateKey(prefix, module, operation string, params map[string]string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(escapeSegment(module))
	b.WriteByte(':')
	b.WriteString(escapeSegment(operation))
	b.WriteByte(':')
	b.WriteString(ParamsHash(params))
	return b.String()
}

// ModulePattern возвращает glob-паттерн всех ключей модуля
func ModulePattern(prefix, module string) string {
	if prefix == "" {
		return escapeSegment(module) + ":*"
	}
	return prefix + ":" + escapeSegment(module) + ":*"
}

// ParamsHash возвращает sha256 (128 бит, hex) канонического представления параметров
func ParamsHash(params map[string]string) string {
	hash := sha256.Sum256([]byte(canonicalParams(params)))
	return hex.EncodeToString(hash[:16])
}

// canonicalParams кодирует параметры как отсортированную query-строку.
// Экранирование делает запись однозначной: "a=b&c" и "a" → "b&c" не совпадут.
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func escapeSegment(s string) string {
	return url.QueryEscape(s)
}

// moduleOf извлекает модуль из ключа, построенного GenerateKey
func moduleOf(prefix, key string) string {
	rest := key
	if prefix != "" {
		rest = strings.TrimPrefix(key, prefix+":")
	}
	module, _, _ := strings.Cut(rest, ":")
	if m, err := url.QueryUnescape(module); err == nil {
		return m
	}
	return module
}
