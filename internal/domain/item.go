package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ItemID identifies a catalog item. The catalog feed mixes numeric and string ids.
type ItemID string

// UnmarshalJSON accepts both 42 and "42".
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode item id: %w", err)
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON writes an id back as a number only when its text is already a
// canonical JSON number; "007", "+5" or "NaN" stay strings.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if id.isJSONNumber() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ItemID) isJSONNumber() bool {
	if id == "" || !json.Valid([]byte(id)) {
		return false
	}
	var n json.Number
	if err := json.Unmarshal([]byte(id), &n); err != nil {
		return false
	}
	return n.String() == string(id)
}

// numeric reports the finite value of a numeric id.
func (id ItemID) numeric() (float64, bool) {
	f, err := strconv.ParseFloat(string(id), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Compare orders numeric ids before all others. Numeric ids compare by value,
// the rest lexically; equal values fall back to the text.
func (id ItemID) Compare(other ItemID) int {
	a, numA := id.numeric()
	b, numB := other.numeric()

	switch {
	case numA && !numB:
		return -1
	case !numA && numB:
		return 1
	case numA && numB:
		if c := cmp.Compare(a, b); c != 0 {
			return c
		}
	}
	return strings.Compare(string(id), string(other))
}

func (id ItemID) Less(other ItemID) bool {
	return id.Compare(other) < 0
}

// Date is the added_date of an item.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ParseDate tries every known layout; an unparseable value yields the zero date.
func ParseDate(value string) Date {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Date{Time: t.UTC()}
		}
	}
	return Date{}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Numeric timestamps in milliseconds
		var ms int64
		if errNum := json.Unmarshal(data, &ms); errNum == nil {
			d.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		d.Time = time.Time{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(time.RFC3339))
}

// Item is one purchasable course as delivered by the catalog feed.
type Item struct {
	ID          ItemID          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Level       Level           `json:"level"`
	AddedDate   Date            `json:"added_date"`
	Description string          `json:"description,omitempty"`
	Author      string          `json:"author,omitempty"`
	Image       string          `json:"image,omitempty"`
	Duration    string          `json:"duration,omitempty"`
}

// CartEntry is the snapshot of an item taken when it is added to the cart.
type CartEntry struct {
	ID    ItemID          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// Entry snapshots the item for the cart.
func (i Item) Entry() CartEntry {
	return CartEntry{ID: i.ID, Name: i.Name, Price: i.Price}
}
