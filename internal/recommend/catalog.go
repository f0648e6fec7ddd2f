package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Entry is one recommendation option: a positioning statement with its references and dispensers.
type Entry struct {
	Positioning string   `json:"posicionamiento"`
	References  []string `json:"referencias"`
	Dispensers  []string `json:"dispensador"`
}

// CellKind tags the shape of a catalog cell.
type CellKind int

const (
	CellAbsent CellKind = iota
	CellSingle
	CellMultiple
)

func (k CellKind) String() string {
	switch k {
	case CellSingle:
		return "single"
	case CellMultiple:
		return "multiple"
	default:
		return "absent"
	}
}

// Cell is the value stored under product/segment/traffic level. Multiple entries are ranked:
// the first one is primary.
type Cell struct {
	Kind    CellKind
	Entries []Entry
}

// SingleCell wraps one entry.
func SingleCell(entry Entry) Cell {
	return Cell{Kind: CellSingle, Entries: []Entry{entry}}
}

// MultipleCell wraps ranked entries. An empty list is an absent cell.
func MultipleCell(entries ...Entry) Cell {
	if len(entries) == 0 {
		return Cell{}
	}
	return Cell{Kind: CellMultiple, Entries: append([]Entry(nil), entries...)}
}

// Primary returns the first entry of the cell.
func (c Cell) Primary() (Entry, bool) {
	if c.Kind == CellAbsent || len(c.Entries) == 0 {
		return Entry{}, false
	}
	return c.Entries[0], true
}

// HasSuggestions reports whether the primary entry carries at least one reference.
func (c Cell) HasSuggestions() bool {
	primary, ok := c.Primary()
	return ok && len(primary.References) > 0
}

// UnmarshalJSON branches on the JSON token: an object is a single entry, an array is a ranked
// list and null is absent.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Cell{}
		return nil
	}
	switch trimmed[0] {
	case '{':
		var entry Entry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return fmt.Errorf("decode single entry: %w", err)
		}
		*c = SingleCell(entry)
	case '[':
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("decode entry list: %w", err)
		}
		*c = MultipleCell(entries...)
	default:
		return fmt.Errorf("catalog cell must be an object, array or null, got %q", trimmed[0])
	}
	return nil
}

// MarshalJSON writes the cell back in the same shape it was read.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellSingle:
		if len(c.Entries) == 0 {
			return []byte("null"), nil
		}
		return json.Marshal(c.Entries[0])
	case CellMultiple:
		return json.Marshal(c.Entries)
	default:
		return []byte("null"), nil
	}
}

// Catalog is the product -> segment -> traffic level table. Keys match exactly.
type Catalog map[string]map[string]map[string]Cell

// Lookup returns the cell for the combination; any missing level yields an absent cell.
func (c Catalog) Lookup(product, segment string, level TrafficLevel) Cell {
	return c.LookupKey(product, segment, level.String())
}

// LookupKey is Lookup with a raw traffic-level key.
func (c Catalog) LookupKey(product, segment, level string) Cell {
	segments, ok := c[product]
	if !ok {
		return Cell{}
	}
	levels, ok := segments[segment]
	if !ok {
		return Cell{}
	}
	return levels[level]
}

// Set stores a cell, creating intermediate maps as needed.
func (c Catalog) Set(product, segment, level string, cell Cell) {
	segments, ok := c[product]
	if !ok {
		segments = make(map[string]map[string]Cell)
		c[product] = segments
	}
	levels, ok := segments[segment]
	if !ok {
		levels = make(map[string]Cell)
		segments[segment] = levels
	}
	levels[level] = cell
}

// Products returns the catalog's product names sorted.
func (c Catalog) Products() []string {
	out := make([]string, 0, len(c))
	for product := range c {
		out = append(out, product)
	}
	sort.Strings(out)
	return out
}

// DecodeCatalog parses a catalog document.
func DecodeCatalog(data []byte) (Catalog, error) {
	catalog := Catalog{}
	if len(bytes.TrimSpace(data)) == 0 {
		return catalog, nil
	}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if catalog == nil {
		catalog = Catalog{}
	}
	return catalog, nil
}
