package extract

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"metaredact/internal/metadata"
	"metaredact/pkg/mimeutil"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

const (
	pngXMPKeyword = "XML:com.adobe.xmp"
	// Upper bound for decompressed text chunks.
	maxTextChunk = 1 << 20
)

// collectPNG reads text, time and eXIf chunks up to IEND.
func collectPNG(data []byte, fields metadata.Mapping) error {
	br := bufio.NewReader(bytes.NewReader(data))

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return err
	}
	if !mimeutil.HasPrefix(sig, pngSignature) {
		return errors.New("invalid PNG signature")
	}

	var exifChunk []byte
	var xmpPackets [][]byte
	text := metadata.Mapping{}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("truncated PNG chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(lenBuf)

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(br, chunkType); err != nil {
			return fmt.Errorf("truncated PNG chunk header: %w", err)
		}
		chunkName := string(chunkType)

		switch chunkName {
		case "tEXt", "zTXt", "iTXt", "tIME", "eXIf":
			if int64(length) > int64(len(data)) {
				return fmt.Errorf("PNG %s chunk length %d exceeds file size", chunkName, length)
			}
			payload := make([]byte, length)
			if _, err := io.ReadFull(br, payload); err != nil {
				return fmt.Errorf("truncated PNG %s chunk: %w", chunkName, err)
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return fmt.Errorf("truncated PNG %s chunk: %w", chunkName, err)
			}

			switch chunkName {
			case "eXIf":
				exifChunk = payload
			case "tIME":
				if ts, ok := pngTime(payload); ok {
					text["ModifyDate"] = ts
				}
			default:
				key, value, err := pngText(chunkName, payload)
				if err != nil {
					return err
				}
				if key == pngXMPKeyword {
					xmpPackets = append(xmpPackets, []byte(value))
				} else if key != "" && value != "" {
					text[key] = value
				}
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return fmt.Errorf("truncated PNG %s chunk: %w", chunkName, err)
			}
		}

		if chunkName == "IEND" {
			break
		}
	}

	if exifChunk != nil {
		if err := collectExif(exifChunk, fields); err != nil {
			return err
		}
	}
	for _, packet := range xmpPackets {
		if err := collectXMP(packet, fields); err != nil {
			return err
		}
	}
	for key, value := range text {
		setIfAbsent(fields, key, value)
	}
	return nil
}

// pngText decodes tEXt, zTXt and iTXt payloads into keyword and text.
func pngText(chunkName string, data []byte) (string, string, error) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return "", "", nil
	}
	key := string(data[:idx])
	rest := data[idx+1:]

	switch chunkName {
	case "tEXt":
		return key, decodeLatin1(rest), nil
	case "zTXt":
		if len(rest) < 1 {
			return key, "", nil
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", "", fmt.Errorf("PNG zTXt %q: %w", key, err)
		}
		return key, decodeLatin1(text), nil
	case "iTXt":
		if len(rest) < 2 {
			return key, "", nil
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// Language tag, then translated keyword, both NUL-terminated.
		for i := 0; i < 2; i++ {
			n := bytes.IndexByte(rest, 0)
			if n < 0 {
				return key, "", nil
			}
			rest = rest[n+1:]
		}
		if !compressed {
			return key, string(rest), nil
		}
		text, err := inflate(rest)
		if err != nil {
			return "", "", fmt.Errorf("PNG iTXt %q: %w", key, err)
		}
		return key, string(text), nil
	}
	return "", "", nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxTextChunk))
}

// pngTime renders a tIME chunk in EXIF date style.
func pngTime(b []byte) (string, bool) {
	if len(b) != 7 {
		return "", false
	}
	year := binary.BigEndian.Uint16(b[:2])
	return fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d", year, b[2], b[3], b[4], b[5], b[6]), true
}
