package currency

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NoConversion is the selector value meaning "show native prices".
const NoConversion = "Choose..."

// ErrTableAbsent is returned by Rate when no exchange table was loaded.
var ErrTableAbsent = errors.New("exchange rate table absent")

// RatesFetcher retrieves multipliers keyed by currency code against the base currency.
type RatesFetcher interface {
	FetchRates(ctx context.Context) (map[string]float64, error)
}

// Table holds the exchange rates fetched once at startup.
type Table struct {
	mu      sync.RWMutex
	base    string
	rates   map[string]decimal.Decimal
	printer *message.Printer
	logger  *zap.Logger
}

// NewTable creates an absent table for the given base currency.
func NewTable(base string, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base == "" {
		base = "USD"
	}
	return &Table{
		base:    strings.ToUpper(base),
		printer: message.NewPrinter(language.English),
		logger:  logger,
	}
}

// Load fetches the table once. On failure the table stays absent; the error
// is returned for bookkeeping only.
func (t *Table) Load(ctx context.Context, fetcher RatesFetcher) error {
	raw, err := fetcher.FetchRates(ctx)
	if err != nil {
		t.logger.Warn("Exchange rates unavailable, conversion disabled", zap.Error(err))
		t.Set(nil)
		return fmt.Errorf("load exchange rates: %w", err)
	}

	t.Set(raw)
	t.logger.Info("Exchange rates loaded",
		zap.String("base", t.base),
		zap.Int("currencies", len(raw)))
	return nil
}

// Set replaces the table. A nil map makes the table absent.
func (t *Table) Set(raw map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if raw == nil {
		t.rates = nil
		return
	}
	t.rates = make(map[string]decimal.Decimal, len(raw))
	for code, rate := range raw {
		t.rates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
}

// Present reports whether a table was loaded.
func (t *Table) Present() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rates != nil
}

// Codes returns the known currency codes, sorted.
func (t *Table) Codes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rate returns the multiplier for code.
func (t *Table) Rate(code string) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.rates == nil {
		return decimal.Zero, ErrTableAbsent
	}
	rate, ok := t.rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", code)
	}
	return rate, nil
}

// Convert returns price expressed in code. The sentinel, an absent table and
// unknown codes all leave the price unchanged.
func (t *Table) Convert(price decimal.Decimal, code string) decimal.Decimal {
	if code == "" || code == NoConversion {
		return price
	}
	rate, err := t.Rate(code)
	if err != nil {
		return price
	}
	return price.Mul(rate)
}

// Applies reports whether Convert would change currency for code.
func (t *Table) Applies(code string) bool {
	if code == "" || code == NoConversion {
		return false
	}
	_, err := t.Rate(code)
	return err == nil
}

// Format renders price converted to code, rounded to cents, with the currency
// symbol. Prices that are not converted are shown in the base currency.
func (t *Table) Format(price decimal.Decimal, code string) string {
	target := t.base
	if t.Applies(code) {
		target = strings.ToUpper(code)
	}
	amount := t.Convert(price, code).Round(2)

	unit, err := currency.ParseISO(target)
	if err != nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), target)
	}
	return t.printer.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}
