package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeCoins(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "монета"},
		{21, "монета"},
		{101, "монета"},
		{2, "монеты"},
		{3, "монеты"},
		{4, "монеты"},
		{22, "монеты"},
		{0, "монет"},
		{5, "монет"},
		{11, "монет"},
		{12, "монет"},
		{14, "монет"},
		{100, "монет"},
		{-2, "монеты"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, PluralizeCoins(c.n), "n=%d", c.n)
	}
}

func TestFormatBalance(t *testing.T) {
	assert.Equal(t, "150 монет", FormatBalance(150))
	assert.Equal(t, "1 монета", FormatBalance(1))
	assert.Equal(t, "42 монеты", FormatBalance(42))
}

func TestPluralizeDays(t *testing.T) {
	assert.Equal(t, "день", PluralizeDays(1))
	assert.Equal(t, "дня", PluralizeDays(3))
	assert.Equal(t, "дней", PluralizeDays(7))
	assert.Equal(t, "дней", PluralizeDays(11))
	assert.Equal(t, "день", PluralizeDays(21))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "Бессрочно", FormatDuration(0))
	assert.Equal(t, "Бессрочно", FormatDuration(-5))
	assert.Equal(t, "1 день", FormatDuration(86400))
	assert.Equal(t, "30 дней", FormatDuration(30*86400))
	assert.Equal(t, "1h0m0s", FormatDuration(3600))
}
