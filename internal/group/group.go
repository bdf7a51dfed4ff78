// Package group buckets a flat metadata mapping into display categories.
package group

import (
	"strings"

	"metaredact/internal/metadata"
)

// Category names a display section.
type Category string

const (
	File   Category = "file"
	Image  Category = "image"
	Camera Category = "camera"
	GPS    Category = "gps"
	Other  Category = "other"
)

// Order is the display order of categories.
var Order = []Category{File, Image, Camera, GPS, Other}

// InfoKey is the row name the "info" note is shown under in Other.
const InfoKey = "Info"

var keywords = map[Category][]string{
	File: {
		"fileName", "fileSize", "fileType", "lastModified", "MIMEType", "MajorBrand",
		"PDFFormatVersion", "IsLinearized", "Title", "Subject", "Keywords",
	},
	Image: {
		"ImageWidth", "ImageHeight", "PixelXDimension", "PixelYDimension",
		"XResolution", "YResolution", "ResolutionUnit", "Orientation", "ColorSpace",
	},
	Camera: {
		"Make", "Model", "Software", "ExposureTime", "FNumber", "ISOSpeedRatings",
		"ExposureBiasValue", "FocalLength", "Flash", "MeteringMode", "WhiteBalance",
		"DateTimeOriginal", "CreateDate", "ModifyDate", "Author", "Creator", "Producer",
	},
	GPS: {
		"GPSLatitude", "GPSLongitude", "GPSAltitude", "GPSTimeStamp", "GPSDateStamp",
		"GPSLatitudeRef", "GPSLongitudeRef", "GPSAltitudeRef",
	},
}

// byKey maps a lower-cased key name to its category.
var byKey = func() map[string]Category {
	out := map[string]Category{}
	for _, c := range Order {
		for _, k := range keywords[c] {
			out[strings.ToLower(k)] = c
		}
	}
	return out
}()

// Groups maps a category to the entries that belong to it. Categories with
// no entries are absent.
type Groups map[Category]metadata.Mapping

// Group classifies every non-nil entry of m by case-insensitive key match.
// The "info" note is moved to Other under InfoKey. m is not modified.
func Group(m metadata.Mapping) Groups {
	groups := Groups{}
	add := func(c Category, key string, value any) {
		if groups[c] == nil {
			groups[c] = metadata.Mapping{}
		}
		groups[c][key] = value
	}

	for key, value := range m {
		if key == metadata.KeyInfo || value == nil {
			continue
		}
		c, ok := byKey[strings.ToLower(key)]
		if !ok {
			c = Other
		}
		add(c, key, cloneValue(value))
	}

	if info, ok := m[metadata.KeyInfo].(string); ok && info != "" {
		add(Other, InfoKey, info)
	}
	return groups
}

// Categories returns the non-empty categories of g in display order.
func (g Groups) Categories() []Category {
	var out []Category
	for _, c := range Order {
		if len(g[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Location derives the decimal coordinate pair from the GPS category.
func (g Groups) Location() (Coordinate, bool) {
	return Coordinates(g[GPS])
}

func cloneValue(v any) any {
	return metadata.Mapping{"v": v}.Clone()["v"]
}
