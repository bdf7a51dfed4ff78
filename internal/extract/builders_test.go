package extract

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"metaredact/internal/testutil"
)

var le = binary.LittleEndian

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: 2, count: uint32(len(data)), data: data}
}

func rationalEntry(tag uint16, pairs ...uint32) ifdEntry {
	var buf bytes.Buffer
	for _, v := range pairs {
		_ = binary.Write(&buf, le, v)
	}
	return ifdEntry{tag: tag, typ: 5, count: uint32(len(pairs) / 2), data: buf.Bytes()}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	b := make([]byte, 4)
	le.PutUint32(b, v)
	return ifdEntry{tag: tag, typ: 4, count: 1, data: b}
}

// encodeIFD lays out one IFD at offset with its out-of-line values directly
// after it.
func encodeIFD(entries []ifdEntry, offset uint32) []byte {
	var head, tail bytes.Buffer
	dataOff := offset + uint32(2+12*len(entries)+4)

	_ = binary.Write(&head, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&head, le, e.tag)
		_ = binary.Write(&head, le, e.typ)
		_ = binary.Write(&head, le, e.count)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			head.Write(v)
			continue
		}
		_ = binary.Write(&head, le, dataOff+uint32(tail.Len()))
		tail.Write(e.data)
		if tail.Len()%2 == 1 {
			tail.WriteByte(0)
		}
	}
	_ = binary.Write(&head, le, uint32(0))
	return append(head.Bytes(), tail.Bytes()...)
}

// buildTIFF returns a little-endian TIFF/EXIF block with IFD0 and an
// optional GPS IFD.
func buildTIFF(ifd0, gps []ifdEntry) []byte {
	entries := append([]ifdEntry(nil), ifd0...)
	if gps != nil {
		entries = append(entries, longEntry(0x8825, 0))
	}
	first := encodeIFD(entries, 8)

	var out bytes.Buffer
	out.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&out, le, uint32(8))

	if gps == nil {
		out.Write(first)
		return out.Bytes()
	}

	gpsOff := uint32(8 + len(first))
	entries[len(entries)-1] = longEntry(0x8825, gpsOff)
	out.Write(encodeIFD(entries, 8))
	out.Write(encodeIFD(gps, gpsOff))
	return out.Bytes()
}

func cameraIFD() []ifdEntry {
	return []ifdEntry{
		asciiEntry(0x010f, "TestMake"),
		asciiEntry(0x0110, "TestCam"),
		asciiEntry(0x0132, "2024:01:02 03:04:05"),
	}
}

// San Francisco, 37°49'27.99"N 122°25'4.25"W.
func gpsIFD() []ifdEntry {
	return []ifdEntry{
		asciiEntry(0x0001, "N"),
		rationalEntry(0x0002, 37, 1, 49, 1, 2799, 100),
		asciiEntry(0x0003, "W"),
		rationalEntry(0x0004, 122, 1, 25, 1, 425, 100),
	}
}

func jpegSegment(marker byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, marker})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	return buf.Bytes()
}

// buildJPEG wraps APP segments between SOI and EOI.
func buildJPEG(segments ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8})
	for _, s := range segments {
		buf.Write(s)
	}
	buf.Write([]byte{0xff, 0xd9})
	return buf.Bytes()
}

func exifSegment(tiff []byte) []byte {
	return jpegSegment(0xe1, append([]byte("Exif\x00\x00"), tiff...))
}

func xmpSegment(packet string) []byte {
	return jpegSegment(0xe1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...))
}

const samplePacket = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmp:CreatorTool="Darkroom 2">
   <dc:creator><rdf:Seq><rdf:li>Jane Doe</rdf:li></rdf:Seq></dc:creator>
   <dc:subject><rdf:Bag><rdf:li>harbor</rdf:li><rdf:li>dusk</rdf:li></rdf:Bag></dc:subject>
   <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Evening Walk</rdf:li></rdf:Alt></dc:title>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

func iptcDataset(dataset byte, value string) []byte {
	b := []byte{0x1c, 0x02, dataset, 0, 0}
	binary.BigEndian.PutUint16(b[3:], uint16(len(value)))
	return append(b, value...)
}

func iptcSegment(datasets ...[]byte) []byte {
	var iim bytes.Buffer
	for _, d := range datasets {
		iim.Write(d)
	}
	var irb bytes.Buffer
	irb.WriteString("Photoshop 3.0\x00")
	irb.WriteString("8BIM")
	_ = binary.Write(&irb, binary.BigEndian, uint16(0x0404))
	irb.Write([]byte{0, 0}) // empty pascal name, padded
	_ = binary.Write(&irb, binary.BigEndian, uint32(iim.Len()))
	irb.Write(iim.Bytes())
	if iim.Len()%2 == 1 {
		irb.WriteByte(0)
	}
	return jpegSegment(0xed, irb.Bytes())
}

func buildPNG(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 12 || string(data[len(data)-8:len(data)-4]) != "IEND" {
		t.Fatalf("unexpected PNG layout")
	}

	insertAt := len(data) - 12
	out := append([]byte{}, data[:insertAt]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[insertAt:]...)
}

func pngChunk(chunkType string, data []byte) []byte {
	chunkTypeBytes := []byte(chunkType)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc32.ChecksumIEEE(append(chunkTypeBytes, data...)))

	chunk := make([]byte, 0, 12+len(data))
	chunk = append(chunk, lenBuf...)
	chunk = append(chunk, chunkTypeBytes...)
	chunk = append(chunk, data...)
	return append(chunk, crcBuf...)
}

func zlibBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("zlib: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib: %v", err)
	}
	return buf.Bytes()
}

// buildPDF writes a one-page PDF whose trailer points at the given info
// dictionary.
func buildPDF(info string) []byte {
	return testutil.BuildPDF(info)
}
