package mem

// SymbolTable reverse-maps addresses to names. It is built once at load time
// from the program's symbol map and never mutated afterwards.
type SymbolTable struct {
	byAddr map[Address]string
}

// NewSymbolTable builds a table from an address→name map. A nil map yields
// an empty table; lookups then always miss.
func NewSymbolTable(symbols map[Address]string) *SymbolTable {
	byAddr := make(map[Address]string, len(symbols))
	for addr, name := range symbols {
		byAddr[addr] = name
	}
	return &SymbolTable{byAddr: byAddr}
}

// Name returns the symbol at the given address.
func (t *SymbolTable) Name(addr Address) (string, bool) {
	name, ok := t.byAddr[addr]
	return name, ok
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	return len(t.byAddr)
}
