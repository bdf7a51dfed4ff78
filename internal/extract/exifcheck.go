package extract

import (
	"encoding/binary"
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
)

const (
	tagExifIFD     = 0x8769
	tagGPSIFD      = 0x8825
	tagInteropIFD  = 0xa005
	tagThumbOffset = 0x0201
	tagThumbLength = 0x0202

	// Real files have IFD0, IFD1 and a handful of sub-IFDs.
	maxIFDs = 32
)

var errExifBounds = errors.New("exif structure points outside its block")

// exifTypeSize is the byte width of one unit of each TIFF field type.
var exifTypeSize = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// checkExifBounds walks every IFD the EXIF parser would follow and rejects
// entries whose counts or offsets reach past the end of raw. The parser
// sizes its buffers from those counts before checking them, so a few
// corrupt bytes can otherwise demand gigabytes.
func checkExifBounds(raw []byte) error {
	eh, err := exif.ParseExifHeader(raw)
	if err != nil {
		return err
	}

	size := uint64(len(raw))
	order := eh.ByteOrder
	pending := []uint32{eh.FirstIfdOffset}
	seen := make(map[uint32]bool)

	for len(pending) > 0 {
		offset := pending[0]
		pending = pending[1:]
		if offset == 0 || seen[offset] {
			continue
		}
		if len(seen) >= maxIFDs {
			return fmt.Errorf("%w: more than %d IFDs", errExifBounds, maxIFDs)
		}
		seen[offset] = true

		if uint64(offset)+2 > size {
			return fmt.Errorf("%w: IFD at %d", errExifBounds, offset)
		}
		count := uint64(order.Uint16(raw[offset:]))
		end := uint64(offset) + 2 + count*12
		if end+4 > size {
			return fmt.Errorf("%w: IFD at %d has %d entries", errExifBounds, offset, count)
		}

		var thumbOffset, thumbLength uint64
		for i := uint64(0); i < count; i++ {
			entry := raw[uint64(offset)+2+i*12:]
			tag := order.Uint16(entry)
			typ := order.Uint16(entry[2:])
			units := uint64(order.Uint32(entry[4:]))
			value := order.Uint32(entry[8:])

			unit, ok := exifTypeSize[typ]
			if !ok {
				unit = 1
			}
			length := units * unit
			if length > size {
				return fmt.Errorf("%w: tag 0x%04x claims %d bytes", errExifBounds, tag, length)
			}
			if length > 4 && uint64(value)+length > size {
				return fmt.Errorf("%w: tag 0x%04x value at %d", errExifBounds, tag, value)
			}

			switch tag {
			case tagExifIFD, tagGPSIFD, tagInteropIFD:
				pending = append(pending, value)
			case tagThumbOffset:
				thumbOffset = uint64(scalar(order, typ, entry[8:]))
			case tagThumbLength:
				thumbLength = uint64(scalar(order, typ, entry[8:]))
			}
		}
		if thumbOffset+thumbLength > size {
			return fmt.Errorf("%w: thumbnail at %d+%d", errExifBounds, thumbOffset, thumbLength)
		}

		pending = append(pending, order.Uint32(raw[end:]))
	}
	return nil
}

// scalar reads an inline SHORT or LONG value.
func scalar(order binary.ByteOrder, typ uint16, b []byte) uint32 {
	if typ == 3 {
		return uint32(order.Uint16(b))
	}
	return order.Uint32(b)
}
