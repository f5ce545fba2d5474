// Package jsonapi implements the subset of the JSON:API document model the
// gateway needs: parsing resource documents, walking relationship objects,
// and merging sideloaded resources into the included array.
package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Identifier is a (type, id) resource identifier. It is comparable and used
// as the deduplication key throughout include resolution.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (i Identifier) String() string {
	return i.Type + ":" + i.ID
}

// Relationship is a relationship object on a resource. Data holds the raw
// linkage (a single identifier, an identifier array, or null) and is decoded
// lazily by Identifiers.
type Relationship struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Links json.RawMessage `json:"links,omitempty"`
	Meta  json.RawMessage `json:"meta,omitempty"`
}

// Identifiers decodes the relationship linkage into a flat identifier list.
// Absent, null, or malformed linkage yields nil rather than an error: a
// relationship we cannot read is treated as empty.
func (r *Relationship) Identifiers() []Identifier {
	if r == nil || len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil
	}

	trimmed := bytes.TrimLeft(r.Data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var many []Identifier
		if err := json.Unmarshal(r.Data, &many); err != nil {
			return nil
		}
		out := many[:0]
		for _, id := range many {
			if id.Type != "" && id.ID != "" {
				out = append(out, id)
			}
		}
		return out
	}

	var one Identifier
	if err := json.Unmarshal(r.Data, &one); err != nil || one.Type == "" || one.ID == "" {
		return nil
	}
	return []Identifier{one}
}

// Resource is a JSON:API resource object. The raw bytes it was parsed from
// are retained so re-serialization reproduces the resource exactly as the
// downstream service sent it.
type Resource struct {
	Type          string                   `json:"type"`
	ID            string                   `json:"id"`
	Attributes    json.RawMessage          `json:"attributes,omitempty"`
	Relationships map[string]*Relationship `json:"relationships,omitempty"`
	Links         json.RawMessage          `json:"links,omitempty"`
	Meta          json.RawMessage          `json:"meta,omitempty"`

	raw json.RawMessage
}

// Identifier returns the resource's (type, id) pair.
func (r *Resource) Identifier() Identifier {
	return Identifier{Type: r.Type, ID: r.ID}
}

// MarshalJSON emits the original bytes when the resource was parsed from the
// wire, so untouched fields and key order survive the round trip.
func (r *Resource) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type alias Resource
	return json.Marshal((*alias)(r))
}

func parseResource(raw json.RawMessage) (*Resource, error) {
	type alias Resource
	var res alias
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	out := (*Resource)(&res)
	out.raw = raw
	return out, nil
}

// Document is a parsed JSON:API document. Top-level members other than data
// and included are kept as raw bytes and written back untouched; the primary
// data is decoded for relationship traversal but re-emitted verbatim.
type Document struct {
	// Data holds the decoded primary resources. A single-resource document
	// yields a one-element slice.
	Data []*Resource

	// Included holds the decoded included array, if present.
	Included []*Resource

	members map[string]json.RawMessage
	order   []string
}

// ParseDocument decodes a JSON:API document. It fails only when the body is
// not a JSON object or the data member is structurally unreadable.
func ParseDocument(body []byte) (*Document, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	doc := &Document{members: members, order: memberOrder(body)}

	if raw, ok := members["data"]; ok {
		data, err := parseResourceList(raw)
		if err != nil {
			return nil, fmt.Errorf("parse primary data: %w", err)
		}
		doc.Data = data
	}
	if raw, ok := members["included"]; ok {
		included, err := parseResourceList(raw)
		if err != nil {
			return nil, fmt.Errorf("parse included: %w", err)
		}
		doc.Included = included
	}

	return doc, nil
}

// HasData reports whether the document carries at least one primary resource.
func (d *Document) HasData() bool {
	return len(d.Data) > 0
}

// Encode serializes the document, writing every top-level member exactly as
// parsed except included, which is rebuilt from d.Included. An empty
// Included leaves the member out only if the original had none either.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	write := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(key)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(value)
	}

	wroteIncluded := false
	for _, key := range d.order {
		if key == "included" {
			value, err := json.Marshal(d.Included)
			if err != nil {
				return nil, err
			}
			write(key, value)
			wroteIncluded = true
			continue
		}
		write(key, d.members[key])
	}

	if !wroteIncluded && len(d.Included) > 0 {
		value, err := json.Marshal(d.Included)
		if err != nil {
			return nil, err
		}
		write("included", value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MergeIncluded prepends resources to the included array, dropping any whose
// (type, id) already appears among resources or the existing entries.
func (d *Document) MergeIncluded(resources []*Resource) {
	if len(resources) == 0 {
		return
	}

	seen := make(map[Identifier]bool, len(resources)+len(d.Included))
	merged := make([]*Resource, 0, len(resources)+len(d.Included))
	for _, r := range resources {
		if seen[r.Identifier()] {
			continue
		}
		seen[r.Identifier()] = true
		merged = append(merged, r)
	}
	for _, r := range d.Included {
		if seen[r.Identifier()] {
			continue
		}
		seen[r.Identifier()] = true
		merged = append(merged, r)
	}
	d.Included = merged
}

func parseResourceList(raw json.RawMessage) ([]*Resource, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		resources := make([]*Resource, 0, len(items))
		for _, item := range items {
			res, err := parseResource(item)
			if err != nil {
				return nil, err
			}
			resources = append(resources, res)
		}
		return resources, nil
	}

	res, err := parseResource(raw)
	if err != nil {
		return nil, err
	}
	return []*Resource{res}, nil
}

// memberOrder recovers the top-level key order of a JSON object so Encode can
// preserve it.
func memberOrder(body []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		order = append(order, key)

		// Skip the member value.
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil
		}
	}
	return order
}
