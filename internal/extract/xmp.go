package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"metaredact/internal/metadata"
)

const rdfNS = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// collectXMP flattens an XMP packet: each leaf property becomes a key named
// after its local name, and rdf:Seq/Bag/Alt items are joined with ", ".
// Attribute-form properties on rdf:Description are included too.
func collectXMP(packet []byte, fields metadata.Mapping) error {
	dec := xml.NewDecoder(bytes.NewReader(packet))
	dec.Strict = false

	values := map[string][]string{}
	var order []string
	add := func(key, value string) {
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = append(values[key], value)
	}

	var stack []xml.Name
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("parse XMP packet: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			text.Reset()
			if t.Name.Space == rdfNS && t.Name.Local == "Description" {
				for _, attr := range t.Attr {
					if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" || attr.Name.Space == rdfNS {
						continue
					}
					add(attr.Name.Local, attr.Value)
				}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name.Space == rdfNS && name.Local != "li" {
				text.Reset()
				continue
			}
			if s := strings.TrimSpace(text.String()); s != "" {
				add(propertyName(name, stack), s)
			}
			text.Reset()
		}
	}

	for _, key := range order {
		setIfAbsent(fields, key, strings.Join(values[key], ", "))
	}
	return nil
}

// propertyName resolves the key for a text node: the element itself, or for
// rdf:li items the nearest enclosing non-RDF element.
func propertyName(name xml.Name, parents []xml.Name) string {
	if name.Space != rdfNS {
		return name.Local
	}
	for i := len(parents) - 1; i >= 0; i-- {
		if parents[i].Space != rdfNS {
			if parents[i].Local == "xmpmeta" {
				return ""
			}
			return parents[i].Local
		}
	}
	return ""
}
