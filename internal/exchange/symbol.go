package exchange

import "strings"

var symbolSeparators = strings.NewReplacer("-", "", "/", "", "_", "", ":", "", " ", "")

// FormatSymbol is the default normalization: "btc/usdt" -> "BTCUSDT".
func FormatSymbol(symbol string) string {
	return symbolSeparators.Replace(strings.ToUpper(strings.TrimSpace(symbol)))
}

// SymbolMap translates normalized symbols to a venue's native pair names
// and back. Symbols missing from the map pass through unchanged.
type SymbolMap struct {
	toVenue   map[string]string
	fromVenue map[string]string
}

func NewSymbolMap(pairs map[string]string) SymbolMap {
	m := SymbolMap{
		toVenue:   make(map[string]string, len(pairs)),
		fromVenue: make(map[string]string, len(pairs)),
	}
	for canonical, native := range pairs {
		m.toVenue[canonical] = native
		m.fromVenue[native] = canonical
	}
	return m
}

func (m SymbolMap) ToVenue(symbol string) string {
	s := FormatSymbol(symbol)
	if native, ok := m.toVenue[s]; ok {
		return native
	}
	return s
}

func (m SymbolMap) FromVenue(native string) string {
	if canonical, ok := m.fromVenue[native]; ok {
		return canonical
	}
	return native
}

// Mapped reports whether symbol has an explicit venue translation.
func (m SymbolMap) Mapped(symbol string) bool {
	_, ok := m.toVenue[FormatSymbol(symbol)]
	return ok
}
