package extract

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"metaredact/internal/metadata"
	"metaredact/pkg/mimeutil"
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegXmpHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	jpegPhotoshop  = []byte("Photoshop 3.0\x00")
)

// jpegSegments holds the metadata-bearing APP segments of a JPEG stream.
type jpegSegments struct {
	exif []byte
	xmp  [][]byte
	iptc [][]byte
}

// scanJPEG walks the marker segments up to the start of scan, collecting
// APP1 (EXIF, XMP) and APP13 (Photoshop/IPTC) payloads.
func scanJPEG(r io.Reader) (jpegSegments, error) {
	var segs jpegSegments
	br := bufio.NewReader(r)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return segs, err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return segs, fmt.Errorf("invalid JPEG SOI")
	}

	for {
		markerPrefix, err := br.ReadByte()
		if err != nil {
			return segs, truncated(err)
		}
		for markerPrefix != 0xff {
			markerPrefix, err = br.ReadByte()
			if err != nil {
				return segs, truncated(err)
			}
		}

		marker, err := br.ReadByte()
		if err != nil {
			return segs, truncated(err)
		}
		for marker == 0xff {
			marker, err = br.ReadByte()
			if err != nil {
				return segs, truncated(err)
			}
		}

		// Metadata segments all precede the first scan.
		if marker == 0xd9 || marker == 0xda { // EOI, SOS
			return segs, nil
		}

		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return segs, truncated(err)
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return segs, fmt.Errorf("invalid JPEG segment length")
		}
		payloadLen := segLen - 2

		if marker != 0xe1 && marker != 0xed {
			if _, err := io.CopyN(io.Discard, br, int64(payloadLen)); err != nil {
				return segs, truncated(err)
			}
			continue
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(br, payload); err != nil {
			return segs, truncated(err)
		}

		switch {
		case marker == 0xe1 && mimeutil.HasPrefix(payload, jpegExifHeader):
			if segs.exif == nil {
				segs.exif = payload[len(jpegExifHeader):]
			}
		case marker == 0xe1 && mimeutil.HasPrefix(payload, jpegXmpHeader):
			segs.xmp = append(segs.xmp, payload[len(jpegXmpHeader):])
		case marker == 0xed && mimeutil.HasPrefix(payload, jpegPhotoshop):
			segs.iptc = append(segs.iptc, payload[len(jpegPhotoshop):])
		}
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("truncated JPEG segment structure: %w", io.ErrUnexpectedEOF)
	}
	return err
}

func collectJPEG(data []byte, fields metadata.Mapping) error {
	segs, err := scanJPEG(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if segs.exif != nil {
		if err := collectExif(segs.exif, fields); err != nil {
			return err
		}
	}
	for _, packet := range segs.xmp {
		if err := collectXMP(packet, fields); err != nil {
			return err
		}
	}
	for _, irb := range segs.iptc {
		if err := collectPhotoshopIPTC(irb, fields); err != nil {
			return err
		}
	}
	return nil
}
