package util

import (
	"errors"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

var (
	ErrBadRecordSize = errors.New("record size mismatch")
	ErrReadOnly      = errors.New("sequence opened read only")
	ErrOutOfRange    = errors.New("index out of range")
)

func DegreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func RadiansToDegree(rad float64) float64 {
	return 180.0 * rad / math.Pi
}

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func AssertPanic(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

// GetTagTokens splits a multi-valued osm tag on ";" and trims the
// parts. Empty parts are dropped.
func GetTagTokens(tag string) []string {
	return GetTagTokensSep(tag, ';')
}

func GetTagTokensSep(tag string, sep rune) []string {
	if tag == "" {
		return nil
	}
	parts := strings.FieldsFunc(tag, func(r rune) bool { return r == sep })
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
