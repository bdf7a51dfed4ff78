package extract

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"metaredact/internal/metadata"
	"metaredact/pkg/log"
)

// Tags that carry opaque vendor blobs rather than readable metadata.
var skippedTags = map[string]bool{
	"MakerNote": true,
	"PrintIM":   true,
}

// collectExif flattens a TIFF-structured EXIF block into fields.
func collectExif(rawExif []byte, fields metadata.Mapping) (err error) {
	// go-exif reports some malformed structures by panicking.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exif parser panic: %v", r)
		}
	}()

	if err := checkExifBounds(rawExif); err != nil {
		if errorsIsNoExif(err) {
			return nil
		}
		return err
	}

	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		if errorsIsNoExif(err) {
			return nil
		}
		return err
	}

	for _, tag := range tags {
		if tag.ChildIfdPath != "" || skippedTags[tag.TagName] {
			continue
		}
		// IFD1 describes the embedded thumbnail, not the photo.
		if strings.HasPrefix(tag.IfdPath, "IFD1") {
			continue
		}
		value, ok := tagValue(tag)
		if !ok {
			continue
		}
		setIfAbsent(fields, tag.TagName, value)
	}
	return nil
}

// collectEmbeddedExif searches formats without a dedicated walker for an
// EXIF block. A block that fails to parse is treated as absent, since the
// search can land on bytes that only look like a TIFF header.
func collectEmbeddedExif(data []byte, fields metadata.Mapping) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if !errorsIsNoExif(err) {
			log.Debugw("exif search failed", "error", err)
		}
		return
	}
	if err := collectExif(rawExif, fields); err != nil {
		log.Debugw("ignoring unparseable embedded exif", "error", err)
	}
}

// tagValue converts a go-exif value into a mapping value: text, a number,
// or an array of numbers.
func tagValue(tag exif.ExifTag) (any, bool) {
	switch v := tag.Value.(type) {
	case string:
		s := strings.TrimSpace(strings.TrimRight(v, "\x00"))
		if s == "" {
			return nil, false
		}
		return s, true
	case []uint8:
		if tag.TagTypeId == exifcommon.TypeUndefined && len(v) > 16 {
			return fmt.Sprintf("(%d bytes)", len(v)), true
		}
		return numbers(len(v), func(i int) float64 { return float64(v[i]) })
	case []uint16:
		return numbers(len(v), func(i int) float64 { return float64(v[i]) })
	case []uint32:
		return numbers(len(v), func(i int) float64 { return float64(v[i]) })
	case []int32:
		return numbers(len(v), func(i int) float64 { return float64(v[i]) })
	case []exifcommon.Rational:
		return numbers(len(v), func(i int) float64 {
			if v[i].Denominator == 0 {
				return 0
			}
			return float64(v[i].Numerator) / float64(v[i].Denominator)
		})
	case []exifcommon.SignedRational:
		return numbers(len(v), func(i int) float64 {
			if v[i].Denominator == 0 {
				return 0
			}
			return float64(v[i].Numerator) / float64(v[i].Denominator)
		})
	default:
		if tag.Formatted == "" {
			return nil, false
		}
		return tag.Formatted, true
	}
}

// numbers collapses single values to a scalar and keeps arrays otherwise.
func numbers(n int, at func(int) float64) (any, bool) {
	switch n {
	case 0:
		return nil, false
	case 1:
		return at(0), true
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = at(i)
	}
	return out, true
}

func errorsIsNoExif(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exif.ErrNoExif) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
