package extract

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"metaredact/internal/metadata"
	"metaredact/pkg/mimeutil"
)

const iptcResourceID = 0x0404

var photoshopResourceSig = []byte("8BIM")

// IPTC-IIM application record (2) datasets worth surfacing.
var iptcRecord2 = map[byte]string{
	5:   "ObjectName",
	25:  "Keywords",
	40:  "SpecialInstructions",
	55:  "DateCreated",
	60:  "TimeCreated",
	80:  "Byline",
	85:  "BylineTitle",
	90:  "City",
	92:  "Sublocation",
	95:  "State",
	100: "CountryCode",
	101: "Country",
	105: "Headline",
	110: "Credit",
	115: "Source",
	116: "CopyrightNotice",
	118: "Contact",
	120: "Caption",
	122: "Writer",
}

// collectPhotoshopIPTC walks Photoshop image resource blocks and decodes the
// IPTC-NAA resource when present.
func collectPhotoshopIPTC(irb []byte, fields metadata.Mapping) error {
	pos := 0
	for pos+4 <= len(irb) {
		if !mimeutil.HasPrefix(irb[pos:], photoshopResourceSig) {
			return nil
		}
		pos += 4
		if pos+2 > len(irb) {
			return fmt.Errorf("truncated photoshop resource header")
		}
		id := binary.BigEndian.Uint16(irb[pos:])
		pos += 2

		// Pascal-string name, padded so length byte + name is even.
		if pos >= len(irb) {
			return fmt.Errorf("truncated photoshop resource name")
		}
		nameLen := int(irb[pos])
		pos += 1 + nameLen
		if (nameLen+1)%2 != 0 {
			pos++
		}

		if pos+4 > len(irb) {
			return fmt.Errorf("truncated photoshop resource size")
		}
		size := int(binary.BigEndian.Uint32(irb[pos:]))
		pos += 4
		if size < 0 || pos+size > len(irb) {
			return fmt.Errorf("photoshop resource 0x%04x overruns segment", id)
		}

		if id == iptcResourceID {
			if err := collectIPTC(irb[pos:pos+size], fields); err != nil {
				return err
			}
		}

		pos += size
		if size%2 != 0 {
			pos++
		}
	}
	return nil
}

// collectIPTC decodes IIM datasets. Repeated datasets (e.g. Keywords) are
// joined with ", ".
func collectIPTC(data []byte, fields metadata.Mapping) error {
	values := map[string][]string{}
	var order []string

	pos := 0
	for pos < len(data) {
		if data[pos] != 0x1c {
			// Trailing padding.
			break
		}
		if pos+5 > len(data) {
			return fmt.Errorf("truncated IPTC dataset header")
		}
		record := data[pos+1]
		dataset := data[pos+2]
		size := int(binary.BigEndian.Uint16(data[pos+3:]))
		pos += 5
		if size&0x8000 != 0 {
			return fmt.Errorf("extended IPTC dataset lengths are not supported")
		}
		if pos+size > len(data) {
			return fmt.Errorf("IPTC dataset %d:%d overruns resource", record, dataset)
		}
		value := data[pos : pos+size]
		pos += size

		if record != 2 {
			continue
		}
		name, ok := iptcRecord2[dataset]
		if !ok {
			continue
		}
		text := strings.TrimSpace(decodeLatin1(value))
		if text == "" {
			continue
		}
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = append(values[name], text)
	}

	for _, name := range order {
		setIfAbsent(fields, name, strings.Join(values[name], ", "))
	}
	return nil
}

// decodeLatin1 returns b as text, treating it as ISO-8859-1 unless it is
// already valid UTF-8.
func decodeLatin1(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
