package receipts

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// replaces every run of characters outside [A-Za-z0-9] with a single
// dash and trims dashes from both ends. idempotent.
func Sanitize(s string) string {
	return strings.Trim(nonAlphanumeric.ReplaceAllString(s, "-"), "-")
}

// base filename, without extension, for one receipt pdf. when a purchase
// date is known it is prefixed so files sort chronologically.
func Filename(id, purchaseDate string) string {
	if purchaseDate == "" {
		return id
	}
	return Sanitize(purchaseDate) + " Order " + id
}
