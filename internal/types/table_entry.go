package types

import "fmt"

// EntryKind enumerates the states a translation table slot can be in.
type EntryKind uint8

const (
	// EntryUndefined marks a slot that has never been written.
	EntryUndefined EntryKind = iota
	// EntryMapped marks a slot that refers to a peer index.
	EntryMapped
	// EntrySpare marks a physical block beyond the per-zone logical cap.
	EntrySpare
	// EntryUnusable marks reserved blocks and blocks with a corrupt control field.
	EntryUnusable
	// EntryBadBlock marks a block the medium rejected.
	EntryBadBlock
	// EntryUnused marks a physical block retired by a remapping write.
	EntryUnused
)

var entryKindNames = map[EntryKind]string{
	EntryUndefined: "undefined",
	EntryMapped:    "mapped",
	EntrySpare:     "spare",
	EntryUnusable:  "unusable",
	EntryBadBlock:  "bad",
	EntryUnused:    "unused",
}

func (k EntryKind) String() string {
	if name, ok := entryKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Entry is one slot of either direction of the translation table. The peer
// index is only reachable through Pba or Lba, and only for mapped slots.
type Entry struct {
	kind EntryKind
	peer uint32
}

// Undefined is the zero Entry.
var Undefined = Entry{kind: EntryUndefined}

// Spare, Unusable, BadBlock and Unused are the remaining non-mapped states.
var (
	Spare    = Entry{kind: EntrySpare}
	Unusable = Entry{kind: EntryUnusable}
	BadBlock = Entry{kind: EntryBadBlock}
	Unused   = Entry{kind: EntryUnused}
)

// MappedPba builds a logical-side slot pointing at a physical block.
func MappedPba(p Pba) Entry {
	return Entry{kind: EntryMapped, peer: uint32(p)}
}

// MappedLba builds a physical-side slot pointing at a logical block.
func MappedLba(l Lba) Entry {
	return Entry{kind: EntryMapped, peer: uint32(l)}
}

// Kind returns the slot state.
func (e Entry) Kind() EntryKind {
	return e.kind
}

// IsMapped reports whether the slot refers to a peer.
func (e Entry) IsMapped() bool {
	return e.kind == EntryMapped
}

// IsFree reports whether a physical-side slot may receive new data.
func (e Entry) IsFree() bool {
	return e.kind == EntryUndefined || e.kind == EntryUnused
}

// Pba returns the physical peer of a logical-side slot.
func (e Entry) Pba() (Pba, bool) {
	if e.kind != EntryMapped {
		return 0, false
	}
	return Pba(e.peer), true
}

// Lba returns the logical peer of a physical-side slot.
func (e Entry) Lba() (Lba, bool) {
	if e.kind != EntryMapped {
		return 0, false
	}
	return Lba(e.peer), true
}

func (e Entry) String() string {
	if e.kind == EntryMapped {
		return fmt.Sprintf("mapped(%d)", e.peer)
	}
	return e.kind.String()
}
