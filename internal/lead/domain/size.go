package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var sizeNumberPattern = regexp.MustCompile(`\d[\d,]*`)

// ParseSquareFootage extracts a project size from free-text form values such
// as "500-1000 sq ft", "1,200" or "over 5000". Ranges resolve to their upper
// bound. Text without a positive number is rejected.
func ParseSquareFootage(label string) (int, error) {
	matches := sizeNumberPattern.FindAllString(strings.TrimSpace(label), -1)
	if len(matches) == 0 {
		return 0, ErrInvalidSquareFootage
	}
	best := 0
	for _, m := range matches {
		n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			return 0, ErrInvalidSquareFootage
		}
		if n > best {
			best = n
		}
	}
	if best <= 0 {
		return 0, ErrInvalidSquareFootage
	}
	return best, nil
}
