package production

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrEmptyName is returned when a blacklist entry is blank.
	ErrEmptyName = errors.New("production: product name is required")
	// ErrAlreadyBlacklisted is returned when adding a name twice.
	ErrAlreadyBlacklisted = errors.New("production: product already blacklisted")
	// ErrNegativeQuantity is returned when an explicit quantity is below zero.
	ErrNegativeQuantity = errors.New("production: quantity must not be negative")
)

// AdjustmentKey identifies an override by point and product.
type AdjustmentKey struct {
	Point   string `json:"point"`
	Product string `json:"product"`
}

// Overrides is one session's planning state. The zero value is ready to use.
type Overrides struct {
	blacklist   []string
	adjustments map[AdjustmentKey]int64
}

// Blacklisted reports whether name is hidden.
func (o *Overrides) Blacklisted(name string) bool {
	return slices.Contains(o.blacklist, name)
}

// Blacklist returns hidden names in insertion order.
func (o *Overrides) Blacklist() []string {
	return slices.Clone(o.blacklist)
}

// AddToBlacklist hides name from plans, totals and exports.
func (o *Overrides) AddToBlacklist(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if o.Blacklisted(name) {
		return fmt.Errorf("%w: %s", ErrAlreadyBlacklisted, name)
	}
	o.blacklist = append(o.blacklist, name)
	return nil
}

// RemoveFromBlacklist shows name again. Removing an absent name is a no-op.
func (o *Overrides) RemoveFromBlacklist(name string) {
	o.blacklist = slices.DeleteFunc(o.blacklist, func(n string) bool { return n == name })
}

// Quantity returns the override for key, or suggestion when none is set.
func (o *Overrides) Quantity(key AdjustmentKey, suggestion int64) (int64, bool) {
	if v, ok := o.adjustments[key]; ok {
		return v, true
	}
	return suggestion, false
}

func (o *Overrides) set(key AdjustmentKey, v int64) {
	if o.adjustments == nil {
		o.adjustments = make(map[AdjustmentKey]int64)
	}
	o.adjustments[key] = v
}

// Increment raises the effective quantity by one.
func (o *Overrides) Increment(key AdjustmentKey, suggestion int64) int64 {
	current, _ := o.Quantity(key, suggestion)
	o.set(key, current+1)
	return current + 1
}

// Decrement lowers the effective quantity by one, stopping at zero.
func (o *Overrides) Decrement(key AdjustmentKey, suggestion int64) int64 {
	current, _ := o.Quantity(key, suggestion)
	if current <= 0 {
		return current
	}
	o.set(key, current-1)
	return current - 1
}

// Set stores an explicit quantity.
func (o *Overrides) Set(key AdjustmentKey, quantity int64) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	o.set(key, quantity)
	return nil
}

// Reset drops the override so the suggestion applies again.
func (o *Overrides) Reset(key AdjustmentKey) {
	delete(o.adjustments, key)
}

type overridesJSON struct {
	Blacklist   []string         `json:"blacklist"`
	Adjustments []adjustmentJSON `json:"adjustments"`
}

type adjustmentJSON struct {
	AdjustmentKey
	Quantity int64 `json:"quantity"`
}

// MarshalJSON stores adjustments as a list since map keys must be strings.
func (o *Overrides) MarshalJSON() ([]byte, error) {
	out := overridesJSON{Blacklist: o.blacklist, Adjustments: make([]adjustmentJSON, 0, len(o.adjustments))}
	if out.Blacklist == nil {
		out.Blacklist = []string{}
	}
	for k, v := range o.adjustments {
		out.Adjustments = append(out.Adjustments, adjustmentJSON{AdjustmentKey: k, Quantity: v})
	}
	slices.SortFunc(out.Adjustments, func(a, b adjustmentJSON) int {
		if c := strings.Compare(a.Point, b.Point); c != 0 {
			return c
		}
		return strings.Compare(a.Product, b.Product)
	})
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Overrides) UnmarshalJSON(data []byte) error {
	var in overridesJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	o.blacklist = in.Blacklist
	o.adjustments = make(map[AdjustmentKey]int64, len(in.Adjustments))
	for _, a := range in.Adjustments {
		o.adjustments[a.AdjustmentKey] = a.Quantity
	}
	return nil
}
