package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/haramapp/internal/utils"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "09123456789", "09123456789"},
		{"spaces", "0912 345 6789", "09123456789"},
		{"dashes", "0912-345-6789", "09123456789"},
		{"country code", "+989123456789", "989123456789"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := utils.NormalizePhone(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneTooShort(t *testing.T) {
	for _, input := range []string{"", "12345", "abc", "0912-345"} {
		_, err := utils.NormalizePhone(input)
		assert.ErrorIs(t, err, utils.ErrInvalidPhone, "input %q", input)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "1234567890", utils.Digits("123-456-7890"))
	assert.Equal(t, "", utils.Digits("no digits here"))
}

func TestHashAndCheckCode(t *testing.T) {
	hash, err := utils.HashCode("483920")
	require.NoError(t, err)
	require.NotEqual(t, "483920", hash)

	assert.True(t, utils.CheckCode(hash, "483920"))
	assert.False(t, utils.CheckCode(hash, "483921"))
	assert.False(t, utils.CheckCode("not-a-hash", "483920"))
}
