// Package phone normalizes subscriber numbers to E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const DefaultRegion = "KE"

var ErrInvalidNumber = errors.New("invalid phone number")

// Normalize parses number, reading national formats against region, and returns it in E.164
func Normalize(number, region string) (string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return "", ErrInvalidNumber
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(number, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %s", ErrInvalidNumber, number)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
