package geometry

import (
	"math"
	"strconv"
	"strings"
)

// ShadowExtent computes the maximum distance a computed box-shadow or
// text-shadow value can render outside the element's layout box:
// max(|offsetX|, |offsetY|) + blur + spread, maximised across all shadows
// in the list. Inset shadows render inside the box and contribute nothing.
//
// The input is a computed-style shadow list, e.g.
// "rgba(0, 0, 0, 0.5) 0px 4px 12px 2px, rgb(255, 0, 0) -2px 0px 6px".
func ShadowExtent(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return 0
	}

	var extent float64
	for _, shadow := range splitShadows(s) {
		if strings.Contains(shadow, "inset") {
			continue
		}
		lengths := shadowLengths(shadow)
		if len(lengths) < 2 {
			continue
		}
		ox, oy := lengths[0], lengths[1]
		var blur, spread float64
		if len(lengths) > 2 {
			blur = lengths[2]
		}
		if len(lengths) > 3 {
			spread = lengths[3]
		}
		e := math.Max(math.Abs(ox), math.Abs(oy)) + blur + spread
		extent = math.Max(extent, e)
	}
	return extent
}

// splitShadows splits a shadow list on top-level commas. Commas inside
// colour functions like rgba(...) must not split.
func splitShadows(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// shadowLengths extracts the px lengths of a single shadow in source
// order: offset-x, offset-y, blur, spread. Colour components (which may
// themselves contain numbers, inside parens) are skipped.
func shadowLengths(shadow string) []float64 {
	var out []float64
	depth := 0
	for _, tok := range strings.Fields(shadow) {
		depth += strings.Count(tok, "(") - strings.Count(tok, ")")
		if depth > 0 || strings.Contains(tok, "(") {
			continue
		}
		v, ok := parsePx(tok)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parsePx(tok string) (float64, bool) {
	tok = strings.TrimSuffix(tok, ",")
	if strings.HasSuffix(tok, "px") {
		tok = strings.TrimSuffix(tok, "px")
	} else if tok != "0" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
