package mimeutil

import (
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies a file type recognised by its leading bytes.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindTIFF
	KindGIF
	KindWebP
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindTIFF:
		return "tiff"
	case KindGIF:
		return "gif"
	case KindWebP:
		return "webp"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// MIME returns the canonical media type for k, or "" for KindUnknown.
func (k Kind) MIME() string {
	switch k {
	case KindJPEG:
		return "image/jpeg"
	case KindPNG:
		return "image/png"
	case KindTIFF:
		return "image/tiff"
	case KindGIF:
		return "image/gif"
	case KindWebP:
		return "image/webp"
	case KindPDF:
		return "application/pdf"
	default:
		return ""
	}
}

// HeaderSize is the number of leading bytes DetectHeader looks at.
const HeaderSize = 12

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
	gifSig    = []byte("GIF8")
	pdfSig    = []byte("%PDF-")
	riffSig   = []byte("RIFF")
	webpSig   = []byte("WEBP")
)

// DetectHeader inspects the leading bytes of a file for known signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 4 {
		return KindUnknown, errors.New("header too short")
	}

	switch {
	case HasPrefix(header, jpegSig):
		return KindJPEG, nil
	case HasPrefix(header, pngSig):
		return KindPNG, nil
	case HasPrefix(header, tiffSigLE), HasPrefix(header, tiffSigBE):
		return KindTIFF, nil
	case HasPrefix(header, gifSig):
		return KindGIF, nil
	case HasPrefix(header, pdfSig):
		return KindPDF, nil
	case HasPrefix(header, riffSig) && len(header) >= 12 && HasPrefix(header[8:], webpSig):
		return KindWebP, nil
	}

	return KindUnknown, nil
}

// SniffFile reads the header of a file to determine its type.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads up to HeaderSize bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}

	return DetectHeader(header[:n])
}

// DetectMIME returns the media type of the file at path, preferring the
// content signature and falling back to the file extension. Files that match
// neither get "".
func DetectMIME(path string) string {
	if kind, err := SniffFile(path); err == nil && kind != KindUnknown {
		return kind.MIME()
	}
	return ByExtension(path)
}

// Types that the builtin mime table lacks and system tables disagree on.
var commonTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".zip":  "application/zip",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ByExtension maps a file name's extension to a media type without
// parameters (e.g. "text/plain" rather than "text/plain; charset=utf-8").
func ByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if typ, ok := commonTypes[ext]; ok {
		return typ
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(typ); err == nil {
		return mediaType
	}
	return typ
}

// HasPrefix reports whether buf starts with prefix.
func HasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
