package textnorm

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"São Paulo", "Sao Paulo"},
		{"Sao Paulo", "Sao Paulo"},
		{"União", "Uniao"},
		{"Fazenda São José", "Fazenda Sao Jose"},
		{"àáâãä èéêë ìíîï òóôõö ùúûü ç ñ", "aaaaa eeee iiii ooooo uuuu c n"},
		{"ÀÁÂÃÄ ÈÉÊË ÌÍÎÏ ÒÓÔÕÖ ÙÚÛÜ Ç Ñ", "AAAAA EEEE IIII OOOOO UUUU C N"},
		{"", ""},
		{"CPF 123.456.789-00", "CPF 123.456.789-00"},
		{"Ærø ß", "Ærø ß"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_SaoPauloEquivalence(t *testing.T) {
	assert.Equal(t, Normalize("São Paulo"), Normalize("Sao Paulo"))
	assert.Equal(t, "Sao Paulo", Normalize("São Paulo"))
}

func TestFoldAndContains(t *testing.T) {
	assert.Equal(t, "sao paulo", Fold("  SÃO Paulo "))
	assert.True(t, Contains("Fazenda São José", "sao jose"))
	assert.True(t, Contains("Teresina", ""))
	assert.False(t, Contains("Teresina", "picos"))
	assert.True(t, Equal("União", "uniao"))
}

func TestPairs(t *testing.T) {
	from, to := Pairs()
	assert.Equal(t, utf8.RuneCountInString(from), utf8.RuneCountInString(to))
	assert.Equal(t, len(accentTable), utf8.RuneCountInString(from))
	assert.Equal(t, Normalize(from), to)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "relatorio_de_rebanhos", SnakeCase("Relatório de Rebanhos"))
	assert.Equal(t, "relatorio_de_unidades_produtivas", SnakeCase("Relatório de Unidades Produtivas"))
	assert.Equal(t, "a_b_c", SnakeCase("  a -- b / c "))
	assert.Equal(t, "", SnakeCase("—"))
}
