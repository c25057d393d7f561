package projector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Multiplier scales ingredient quantities for display only.
type Multiplier int

// Available multipliers, in menu order.
const (
	Half Multiplier = iota
	Single
	OneAndAHalf
	Double
)

var multiplierTable = []struct {
	factor float64
	label  string
	name   string
}{
	{0.5, "0.5x", "half"},
	{1, "1x", "single"},
	{1.5, "1.5x", "one_and_a_half"},
	{2, "2x", "double"},
}

// Multipliers returns every multiplier in menu order.
func Multipliers() []Multiplier {
	return []Multiplier{Half, Single, OneAndAHalf, Double}
}

// Valid reports whether m is a known multiplier.
func (m Multiplier) Valid() bool {
	return m >= 0 && int(m) < len(multiplierTable)
}

// Factor returns the scale applied to stored quantities.
func (m Multiplier) Factor() float64 {
	if !m.Valid() {
		return 1
	}
	return multiplierTable[m].factor
}

func (m Multiplier) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Multiplier(%d)", int(m))
	}
	return multiplierTable[m].label
}

// MarshalText encodes m as its label.
func (m Multiplier) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid multiplier %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseMultiplier does.
func (m *Multiplier) UnmarshalText(b []byte) error {
	v, err := ParseMultiplier(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMultiplier accepts a label ("1.5x"), a bare factor ("1.5") or a name
// ("one_and_a_half"). The empty string is Single.
func ParseMultiplier(s string) (Multiplier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Single, nil
	}
	for i, e := range multiplierTable {
		if s == e.label || s == e.name || s == strings.TrimSuffix(e.label, "x") {
			return Multiplier(i), nil
		}
	}
	return Single, fmt.Errorf("unknown multiplier %q", s)
}

// FormatQuantity renders q scaled by m with at most two decimals and no
// trailing zeros ("2", "0.75", "1.33").
func FormatQuantity(q float32, m Multiplier) string {
	v := float64(q) * m.Factor()
	v = math.RoundToEven(v*100) / 100
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
