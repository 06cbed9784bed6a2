package novatel

import (
	"strconv"
	"strings"
)

// conversion is a parsed printf-style conversion string such as "%.11lf",
// "%08lx" or "%m".
type conversion struct {
	verb      byte
	width     int
	precision int
	zeroPad   bool
}

var noConversion = conversion{precision: -1}

func parseConversion(s string) conversion {
	c := noConversion
	if len(s) < 2 || s[0] != '%' {
		return c
	}
	i := 1
	if i < len(s) && s[i] == '0' {
		c.zeroPad = true
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		c.width = c.width*10 + int(s[i]-'0')
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		c.precision = 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			c.precision = c.precision*10 + int(s[i]-'0')
			i++
		}
	}
	for i < len(s) && (s[i] == 'l' || s[i] == 'h') {
		i++
	}
	if i < len(s) {
		c.verb = s[i]
	}
	return c
}

func (c conversion) isHex() bool { return c.verb == 'x' || c.verb == 'X' }

func (c conversion) isMessageID() bool { return c.verb == 'm' }

// formatInt renders an integer in decimal or, for hex conversions, in hex.
func (c conversion) formatInt(v int64, unsigned uint64, signed bool) string {
	var s string
	switch {
	case c.verb == 'x':
		s = strconv.FormatUint(unsigned, 16)
	case c.verb == 'X':
		s = strings.ToUpper(strconv.FormatUint(unsigned, 16))
	case signed:
		s = strconv.FormatInt(v, 10)
	default:
		s = strconv.FormatUint(unsigned, 10)
	}
	if c.width > len(s) {
		pad := " "
		if c.zeroPad {
			pad = "0"
		}
		neg := strings.HasPrefix(s, "-")
		if neg && c.zeroPad {
			return "-" + strings.Repeat(pad, c.width-len(s)) + s[1:]
		}
		s = strings.Repeat(pad, c.width-len(s)) + s
	}
	return s
}

// formatFloat renders a float following the conversion. An exact zero under
// an exponent conversion is written in fixed notation.
func (c conversion) formatFloat(v float64) string {
	prec := c.precision
	switch c.verb {
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		if v == 0 {
			return strconv.FormatFloat(v, 'f', prec, 64)
		}
		return strconv.FormatFloat(v, c.verb, prec, 64)
	case 'g', 'G':
		return strconv.FormatFloat(v, c.verb, prec, 64)
	default:
		if prec < 0 {
			prec = 6
		}
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
}
