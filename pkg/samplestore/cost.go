package samplestore

// FieldKind classifies a serialized value for cost purposes.
type FieldKind uint8

const (
	KindNumber FieldKind = iota
	KindString
	KindTable
	KindEntry
	KindEntityRef
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindEntry:
		return "entry"
	case KindEntityRef:
		return "entity_ref"
	default:
		return "unknown"
	}
}

// CostModel prices serialized fields in bytes. length is the payload
// length for strings and ignored by the other kinds.
type CostModel interface {
	Cost(kind FieldKind, length int) int64
}

// CostFunc prices one field kind.
type CostFunc func(length int) int64

// Fixed returns a CostFunc that ignores length.
func Fixed(n int64) CostFunc {
	return func(int) int64 { return n }
}

// PerByte returns a CostFunc of base + length.
func PerByte(base int64) CostFunc {
	return func(length int) int64 { return base + int64(length) }
}

// TableCostModel maps each field kind to its cost function.
// Kinds missing from the table cost nothing.
type TableCostModel map[FieldKind]CostFunc

// Cost implements CostModel.
func (m TableCostModel) Cost(kind FieldKind, length int) int64 {
	if f, ok := m[kind]; ok {
		return f(length)
	}
	return 0
}

// LuaCostModel approximates the mod's save-file serialization:
//
//	number      9 bytes (type tag + 8 byte double)
//	string      5 + len bytes (type tag + length + data)
//	table       16 bytes (type tag + array/hash sizes)
//	entry       2 bytes (key/value type tags)
//	entity ref  12 bytes (type tag + surface + unit_number)
func LuaCostModel() TableCostModel {
	return TableCostModel{
		KindNumber:    Fixed(9),
		KindString:    PerByte(5),
		KindTable:     Fixed(16),
		KindEntry:     Fixed(2),
		KindEntityRef: Fixed(12),
	}
}

// pricer shortens repeated lookups in the estimator.
type pricer struct{ m CostModel }

func (p pricer) num() int64 { return p.m.Cost(KindNumber, 0) }
func (p pricer) str(s string) int64 { return p.m.Cost(KindString, len(s)) }
func (p pricer) strLen(n int) int64 { return p.m.Cost(KindString, n) }
func (p pricer) table() int64 { return p.m.Cost(KindTable, 0) }
func (p pricer) entry() int64 { return p.m.Cost(KindEntry, 0) }
func (p pricer) entityRef() int64 { return p.m.Cost(KindEntityRef, 0) }
