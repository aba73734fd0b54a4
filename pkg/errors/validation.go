package errors

import (
	"math"
	"strings"
	"unicode"
)

// MaxImageSide is the largest accepted image width or height in pixels.
const MaxImageSide = 16384

// ValidateURL validates a payload URL.
// http, https and file URLs are accepted; anything else is rejected.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	for _, r := range rawURL {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "URL contains invalid control characters")
		}
	}
	if !strings.HasPrefix(rawURL, "http://") &&
		!strings.HasPrefix(rawURL, "https://") &&
		!strings.HasPrefix(rawURL, "file://") {
		return New(ErrCodeInvalidInput, "URL must use http, https or file scheme")
	}
	return nil
}

// ValidateDimensions checks an output image size.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidInput, "image size must be positive (got %dx%d)", width, height)
	}
	if width > MaxImageSide || height > MaxImageSide {
		return New(ErrCodeAllocation, "image size %dx%d exceeds %d pixels per side", width, height, MaxImageSide)
	}
	return nil
}

// ValidateBounds checks a custom bounding box given as top/bottom latitude
// and left/right longitude. Longitudes are not range checked because the
// box may cross the antimeridian on either numeric branch. The box always
// runs east from left to right, so a left greater than right (20 to 10)
// is a box crossing the antimeridian, not a swapped pair. Equal left and
// right are rejected as a zero width box; bounds a whole number of turns
// apart (0 to 360) ask for the whole globe.
func ValidateBounds(top, bottom, left, right float64) error {
	for _, v := range []float64{top, bottom, left, right} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return New(ErrCodeInvalidArea, "area bounds must be finite")
		}
	}
	if top <= -90 || top >= 90 || bottom <= -90 || bottom >= 90 {
		return New(ErrCodeInvalidArea, "area latitudes must lie strictly between -90 and 90")
	}
	if top <= bottom {
		return New(ErrCodeInvalidArea, "area top (%g) must be north of bottom (%g)", top, bottom)
	}
	if left == right {
		return New(ErrCodeInvalidArea, "area left and right longitudes are equal (%g)", left)
	}
	return nil
}
