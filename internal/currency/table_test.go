package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubFetcher struct {
	rates map[string]float64
	err   error
}

func (s stubFetcher) FetchRates(context.Context) (map[string]float64, error) {
	return s.rates, s.err
}

func loadedTable(t *testing.T) *Table {
	t.Helper()
	table := NewTable("USD", zaptest.NewLogger(t))
	require.NoError(t, table.Load(context.Background(), stubFetcher{rates: map[string]float64{"EUR": 0.5, "ils": 3.5}}))
	return table
}

func TestTable_Convert(t *testing.T) {
	table := loadedTable(t)
	price := decimal.RequireFromString("10.00")

	assert.True(t, table.Convert(price, "EUR").Equal(decimal.RequireFromString("5")))
	assert.True(t, table.Convert(price, "ILS").Equal(decimal.RequireFromString("35")), "codes are case-insensitive")
	assert.True(t, table.Convert(price, NoConversion).Equal(price))
	assert.True(t, table.Convert(price, "").Equal(price))
}

func TestTable_UnknownCodeFailsClosed(t *testing.T) {
	table := loadedTable(t)
	price := decimal.RequireFromString("12.34")

	assert.True(t, table.Convert(price, "XYZ").Equal(price))
	assert.False(t, table.Applies("XYZ"))
}

func TestTable_AbsentAfterFailedLoad(t *testing.T) {
	table := NewTable("USD", zaptest.NewLogger(t))
	err := table.Load(context.Background(), stubFetcher{err: errors.New("boom")})
	require.Error(t, err)

	assert.False(t, table.Present())
	assert.Empty(t, table.Codes())

	price := decimal.RequireFromString("8")
	assert.True(t, table.Convert(price, "EUR").Equal(price))

	_, err = table.Rate("EUR")
	assert.ErrorIs(t, err, ErrTableAbsent)
}

func TestTable_Codes(t *testing.T) {
	assert.Equal(t, []string{"EUR", "ILS"}, loadedTable(t).Codes())
}

func TestTable_Format(t *testing.T) {
	table := loadedTable(t)

	converted := table.Format(decimal.RequireFromString("25"), "EUR")
	assert.Contains(t, converted, "12.5")
	assert.Contains(t, converted, "€")

	native := table.Format(decimal.RequireFromString("25"), NoConversion)
	assert.Contains(t, native, "25")
	assert.Contains(t, native, "$")
}
