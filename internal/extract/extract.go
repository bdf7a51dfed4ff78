// Package extract maps raw file bytes and a declared media type to a flat
// metadata mapping. Images (EXIF, XMP, IPTC, PNG text) and PDF info
// dictionaries are understood; every other type yields an explanatory note.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"metaredact/internal/metadata"
	"metaredact/pkg/mimeutil"
)

const (
	NoteUnsupported = "Detailed metadata extraction is not supported for this file type."
	NoteNoImageData = "No detailed EXIF data found in this image."
	NoteDemoGPS     = "No EXIF data found. Displaying sample GPS data for demonstration."
	NoteSampleData  = "This is sample data. Upload an original phone photo to see real coordinates."
)

// KeySampleData marks a mapping produced by the demonstration fallback.
const KeySampleData = "SampleData"

// ExtractionError reports bytes the parser for Format could not process.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s metadata: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var errNotJPEG = errors.New("declared image/jpeg but data has no JPEG SOI marker")

// Extract returns the embedded metadata of data. Unsupported types are not
// an error: they produce a mapping holding only an "info" note.
func Extract(data []byte, mimeType string) (metadata.Mapping, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return extractImage(data, mimeType)
	case mimeType == "application/pdf":
		return extractPDF(data)
	default:
		return metadata.Mapping{metadata.KeyInfo: NoteUnsupported}, nil
	}
}

func extractImage(data []byte, mimeType string) (metadata.Mapping, error) {
	kind, _ := mimeutil.DetectHeader(data)
	if mimeType == "image/jpeg" && kind != mimeutil.KindJPEG {
		return nil, &ExtractionError{Format: "jpeg", Err: errNotJPEG}
	}

	fields := metadata.Mapping{}
	switch kind {
	case mimeutil.KindJPEG:
		if err := collectJPEG(data, fields); err != nil {
			return nil, &ExtractionError{Format: "jpeg", Err: err}
		}
	case mimeutil.KindPNG:
		if err := collectPNG(data, fields); err != nil {
			return nil, &ExtractionError{Format: "png", Err: err}
		}
	case mimeutil.KindTIFF:
		if err := collectExif(data, fields); err != nil {
			return nil, &ExtractionError{Format: "tiff", Err: err}
		}
	default:
		collectEmbeddedExif(data, fields)
	}

	addDecimalGPS(fields)

	if len(fields) > 0 {
		return fields, nil
	}
	if kind == mimeutil.KindJPEG && mimeType == "image/jpeg" {
		return demoFixture(), nil
	}
	return metadata.Mapping{metadata.KeyInfo: NoteNoImageData}, nil
}

// demoFixture is the clearly labelled sample location shown for JPEGs that
// carry no metadata at all. It is never real data.
func demoFixture() metadata.Mapping {
	return metadata.Mapping{
		metadata.KeyInfo:  NoteDemoGPS,
		"GPSLatitude":     []float64{37, 49, 27.99},
		"GPSLatitudeRef":  "N",
		"GPSLongitude":    []float64{122, 25, 4.25},
		"GPSLongitudeRef": "W",
		"latitude":        37.82444166666666,
		"longitude":       -122.41784722222222,
		KeySampleData:     NoteSampleData,
	}
}

// addDecimalGPS surfaces signed decimal degrees next to the raw DMS arrays.
func addDecimalGPS(fields metadata.Mapping) {
	lat, okLat := fields["GPSLatitude"].([]float64)
	lon, okLon := fields["GPSLongitude"].([]float64)
	if !okLat || !okLon {
		return
	}
	latDec, okLat := metadata.DMSToDecimal(lat)
	lonDec, okLon := metadata.DMSToDecimal(lon)
	if !okLat || !okLon {
		return
	}
	latRef, _ := fields["GPSLatitudeRef"].(string)
	lonRef, _ := fields["GPSLongitudeRef"].(string)
	fields["latitude"] = metadata.SignedCoordinate(latDec, latRef)
	fields["longitude"] = metadata.SignedCoordinate(lonDec, lonRef)
}

// setIfAbsent keeps the first source to report a key (EXIF before XMP/IPTC).
func setIfAbsent(fields metadata.Mapping, key string, value any) {
	if key == "" {
		return
	}
	if _, exists := fields[key]; exists {
		return
	}
	fields[key] = value
}
