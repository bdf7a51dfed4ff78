package group

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"metaredact/internal/metadata"
)

// Coordinate is a signed decimal-degree position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates reads GPSLatitude/GPSLongitude (decimal numbers, numeric
// strings or degree/minute/second arrays) and applies the N/S/E/W refs.
// It reports false when either value is missing or not numeric.
func Coordinates(gps metadata.Mapping) (Coordinate, bool) {
	lat, ok := parseCoordinate(gps["GPSLatitude"])
	if !ok {
		return Coordinate{}, false
	}
	lon, ok := parseCoordinate(gps["GPSLongitude"])
	if !ok {
		return Coordinate{}, false
	}

	latRef, _ := gps["GPSLatitudeRef"].(string)
	lonRef, _ := gps["GPSLongitudeRef"].(string)
	return Coordinate{
		Lat: metadata.SignedCoordinate(lat, strings.TrimSpace(latRef)),
		Lon: metadata.SignedCoordinate(lon, strings.TrimSpace(lonRef)),
	}, true
}

// MapURL returns an OpenStreetMap embed URL centred on c with a 0.01 degree
// margin on every side.
func MapURL(c Coordinate) string {
	return fmt.Sprintf(
		"https://www.openstreetmap.org/export/embed.html?bbox=%s,%s,%s,%s&layer=mapnik&marker=%s,%s",
		formatDegrees(c.Lon-0.01), formatDegrees(c.Lat-0.01),
		formatDegrees(c.Lon+0.01), formatDegrees(c.Lat+0.01),
		formatDegrees(c.Lat), formatDegrees(c.Lon),
	)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// parseCoordinate rejects NaN and infinities, which ParseFloat accepts.
func parseCoordinate(v any) (float64, bool) {
	f, ok := parseCoordinateValue(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseCoordinateValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case []float64:
		return metadata.DMSToDecimal(val)
	case []any:
		nums := make([]float64, 0, len(val))
		for _, item := range val {
			f, ok := item.(float64)
			if !ok {
				return 0, false
			}
			nums = append(nums, f)
		}
		return metadata.DMSToDecimal(nums)
	case string:
		return parseCoordinateText(val)
	default:
		return 0, false
	}
}

// parseCoordinateText accepts "37.8", "37, 49, 27.99", "[37 49 2799/100]"
// and similar renderings.
func parseCoordinateText(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}

	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, ok := parseRational(part)
		if !ok {
			return 0, false
		}
		values = append(values, value)
	}
	return metadata.DMSToDecimal(values)
}

func parseRational(part string) (float64, bool) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, false
	}
	if num, den, found := strings.Cut(part, "/"); found {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	value, err := strconv.ParseFloat(part, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
