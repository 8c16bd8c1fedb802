package odm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Int is a 64-bit integer rendered in decimal.
type Int int64

// Varint is an alias of Int.
type Varint = Int

func (i Int) Render() string { return strconv.FormatInt(int64(i), 10) }

// SmallInt is an integer restricted to [-32767, 32767].
type SmallInt int16

// Bounds of SmallInt.
const (
	SmallIntMin = -32767
	SmallIntMax = 32767
)

// NewSmallInt validates v and returns it as SmallInt.
func NewSmallInt(v int) (SmallInt, error) {
	if v < SmallIntMin || v > SmallIntMax {
		return 0, fmt.Errorf("%w: %d", ErrSmallIntRange, v)
	}
	return SmallInt(v), nil
}

func (s SmallInt) Render() string { return strconv.Itoa(int(s)) }

// Double is a binary float rendered in its shortest round-trip form,
// always with a fractional part or exponent ("1.0", "2.5", "1e+20").
type Double float64

// Float is an alias of Double.
type Float = Double

func (d Double) Render() string {
	f := float64(d)
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

// Decimal is an arbitrary-precision decimal number: unscaled × 10^-scale.
// The zero value is 0.
type Decimal struct {
	unscaled big.Int
	scale    int32
}

// NewDecimal returns unscaled × 10^-scale.
func NewDecimal(unscaled int64, scale int32) Decimal {
	var d Decimal
	d.unscaled.SetInt64(unscaled)
	d.scale = scale
	return d
}

// ParseDecimal parses a literal such as "-12.340", "7" or "1.5e-3". Trailing
// zeros are kept, so the rendered form preserves the literal's precision.
func ParseDecimal(s string) (Decimal, error) {
	var d Decimal
	lit := strings.TrimSpace(s)
	if lit == "" {
		return d, fmt.Errorf("%w: %q", ErrInvalidDec, s)
	}

	exp := int64(0)
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		e, err := strconv.ParseInt(lit[i+1:], 10, 32)
		if err != nil {
			return d, fmt.Errorf("%w: %q", ErrInvalidDec, s)
		}
		exp = e
		lit = lit[:i]
	}

	sign := ""
	if lit != "" && (lit[0] == '-' || lit[0] == '+') {
		if lit[0] == '-' {
			sign = "-"
		}
		lit = lit[1:]
	}

	intPart, fracPart, _ := strings.Cut(lit, ".")
	digits := intPart + fracPart
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return d, fmt.Errorf("%w: %q", ErrInvalidDec, s)
	}
	if _, ok := d.unscaled.SetString(sign+digits, 10); !ok {
		return d, fmt.Errorf("%w: %q", ErrInvalidDec, s)
	}
	scale := int64(len(fracPart)) - exp
	if scale > math.MaxInt32 || scale < math.MinInt32 {
		return d, fmt.Errorf("%w: exponent out of range in %q", ErrInvalidDec, s)
	}
	d.scale = int32(scale)
	return d, nil
}

// MustDecimal is ParseDecimal that panics on error, for literals in code.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Scale returns the number of fractional digits.
func (d Decimal) Scale() int32 { return d.scale }

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int { return d.unscaled.Sign() }

// Rat returns the exact value as a rational number.
func (d Decimal) Rat() *big.Rat {
	r := new(big.Rat).SetInt(&d.unscaled)
	if d.scale == 0 {
		return r
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(d.scale))), nil)
	if d.scale > 0 {
		return r.Quo(r, new(big.Rat).SetInt(pow))
	}
	return r.Mul(r, new(big.Rat).SetInt(pow))
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	f, _ := d.Rat().Float64()
	return f
}

// Render returns plain decimal notation without exponent.
func (d Decimal) Render() string {
	digits := new(big.Int).Abs(&d.unscaled).String()
	sign := ""
	if d.unscaled.Sign() < 0 {
		sign = "-"
	}
	switch {
	case d.scale == 0:
		return sign + digits
	case d.scale < 0:
		return sign + digits + strings.Repeat("0", int(-d.scale))
	}
	scale := int(d.scale)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	point := len(digits) - scale
	return sign + digits[:point] + "." + digits[point:]
}

func (d Decimal) String() string { return d.Render() }

// Truthy reports whether the value is non-zero.
func (d Decimal) Truthy() bool { return d.unscaled.Sign() != 0 }

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
