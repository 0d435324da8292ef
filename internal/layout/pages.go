package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Named page sizes, portrait.
var pageSizes = map[string]Size{
	"a4":     {Width: 210, Height: 297},
	"a5":     {Width: 148, Height: 210},
	"a6":     {Width: 105, Height: 148},
	"letter": {Width: 215.9, Height: 279.4},
	"legal":  {Width: 215.9, Height: 355.6},
	"4x6":    {Width: 101.6, Height: 152.4},
	"4x3":    {Width: 101.6, Height: 76.2},
	"2x1":    {Width: 50.8, Height: 25.4},
}

// PageSizeNames lists the known page size names.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for name := range pageSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSize accepts a named page size ("a4", "Letter") or explicit millimetre
// dimensions ("100x50", "101.6x152.4mm").
func ParseSize(s string) (Size, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if size, ok := pageSizes[key]; ok {
		return size, nil
	}

	w, h, ok := strings.Cut(strings.TrimSuffix(key, "mm"), "x")
	if !ok {
		return Size{}, fmt.Errorf("page size %q: %w", s, ErrInvalidSize)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return Size{}, fmt.Errorf("page width %q: %w", w, ErrInvalidSize)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return Size{}, fmt.Errorf("page height %q: %w", h, ErrInvalidSize)
	}

	size := Size{Width: width, Height: height}
	if !size.valid() || size.Width > MaxPageMM || size.Height > MaxPageMM {
		return Size{}, fmt.Errorf("page size %q: %w", s, ErrInvalidSize)
	}
	return size, nil
}
