package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntLiteral(t *testing.T) {
	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{"017", 15, true},
		{"0x1F", 31, true},
		{"0b101", 5, true},
		{"1_000_000", 1000000, true},
		{"10UL", 10, true},
		{"7L", 7, true},
		{"0xFFFFFFFFFFFFFFFF", -1, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := IntLiteral(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFloatLiterals(t *testing.T) {
	v, ok := FloatLiteral("2.5f")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)

	v, ok = FloatLiteral("1e3")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)

	assert.True(t, IsFloatLiteral("1.0"))
	assert.True(t, IsFloatLiteral("3f"))
	assert.True(t, IsFloatLiteral("0x1p3"))
	assert.False(t, IsFloatLiteral("0x1F"))
	assert.False(t, IsFloatLiteral("12"))

	assert.True(t, LongSuffix("12L"))
	assert.True(t, LongSuffix("0xFFul"))
	assert.False(t, LongSuffix("12"))
}

func TestStringAndCharLiterals(t *testing.T) {
	assert.Equal(t, "a\tb", StringLiteral(`"a\tb"`))
	assert.Equal(t, "\nhello", StringLiteral("\"\"\"\nhello\"\"\""))
	assert.Equal(t, 'x', CharLiteral("'x'"))
	assert.Equal(t, '\n', CharLiteral(`'\n'`))
	assert.Equal(t, rune(0), CharLiteral("''"))
}
