package validator

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	RgxEmail      = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$")
	RgxEthAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	RgxTxHash     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// MinPasswordLength is enforced before the stricter gopass policy so users get
// the short message first.
const MinPasswordLength = 8

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func MinRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) >= n
}

func MaxRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

func Between[T int | int64 | float64](value, min, max T) bool {
	return value >= min && value <= max
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

func PermittedValue[T comparable](value T, permittedValues ...T) bool {
	return slices.Contains(permittedValues, value)
}

func IsEmail(value string) bool {
	if len(value) > 254 {
		return false
	}

	return RgxEmail.MatchString(value)
}

func IsEthAddress(value string) bool {
	return RgxEthAddress.MatchString(value)
}

func IsTxHash(value string) bool {
	return RgxTxHash.MatchString(value)
}

// MaxDecimalPlaces reports whether value needs no more than places digits
// after the point. Trailing zeros do not count.
func MaxDecimalPlaces(value decimal.Decimal, places int32) bool {
	return value.Equal(value.Round(places))
}
