// Package symbol defines the identity and record types for indexed code
// symbols and the relations between them. Every indexed entity is addressed
// by a deterministic 128-bit ID so that the same symbol at the same location
// always resolves to the same identity across index rebuilds.
package symbol

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// IDSize is the size of a symbol ID in bytes (128 bits).
const IDSize = 16

// ID is a content-addressable symbol identifier. It is computed from
// (repository identity, relative path, qualified name, byte range), so
// identical symbol contents at identical locations yield identical IDs.
// The zero value is not a valid ID for any indexed symbol.
type ID [IDSize]byte

// NewID computes the deterministic ID for a symbol.
func NewID(repo, relPath, qualifiedName string, startByte, endByte int) ID {
	h := sha256.New()
	h.Write([]byte(repo))
	h.Write([]byte{0})
	h.Write([]byte(relPath))
	h.Write([]byte{0})
	h.Write([]byte(qualifiedName))
	h.Write([]byte{0})

	var span [16]byte
	binary.BigEndian.PutUint64(span[0:8], uint64(startByte))
	binary.BigEndian.PutUint64(span[8:16], uint64(endByte))
	h.Write(span[:])

	var id ID
	copy(id[:], h.Sum(nil)[:IDSize])
	return id
}

// ParseID decodes a 32-character hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid symbol id %q: %w", s, err)
	}
	if len(raw) != IDSize {
		return id, fmt.Errorf("invalid symbol id %q: want %d bytes, got %d", s, IDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the lowercase hex form of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is the all-zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare returns -1, 0, or 1 comparing IDs by byte order.
// This is the canonical tie-break order for ranked results.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other in byte order.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

// Kind classifies a symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindInterface Kind = "interface"
	KindTrait     Kind = "trait"
	KindModule    Kind = "module"
	KindPackage   Kind = "package"
	KindVariable  Kind = "variable"
	KindConstant  Kind = "constant"
	KindEnum      Kind = "enum"
	KindTypeAlias Kind = "type_alias"
)

// Valid reports whether k is one of the known symbol kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFunction, KindMethod, KindClass, KindStruct, KindInterface,
		KindTrait, KindModule, KindPackage, KindVariable, KindConstant,
		KindEnum, KindTypeAlias:
		return true
	}
	return false
}

// Symbol is a fully hydrated symbol record.
type Symbol struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"` // dot-separated canonical form
	DisplayName   string `json:"display_name"`   // language-native form (e.g. pkg::Type::method)
	Kind          Kind   `json:"kind"`
	Language      string `json:"language"`
	FilePath      string `json:"file_path"` // relative to repository root
	StartByte     int    `json:"start_byte"`
	EndByte       int    `json:"end_byte"`
	StartLine     int    `json:"start_line"` // zero-indexed, half-open
	EndLine       int    `json:"end_line"`
	Signature     string `json:"signature,omitempty"`
	Doc           string `json:"doc,omitempty"`
	BodyHash      string `json:"body_hash,omitempty"` // for change detection
}

// CanonicalName normalizes a language-native qualified name to the
// dot-separated canonical form. `::` and `/` separators become `.`.
func CanonicalName(native string) string {
	s := strings.ReplaceAll(native, "::", ".")
	s = strings.ReplaceAll(s, "/", ".")
	return strings.Trim(s, ".")
}

// RelationKind classifies a directed edge between two symbols.
type RelationKind string

const (
	RelationCalls      RelationKind = "calls"
	RelationImports    RelationKind = "imports"
	RelationInherits   RelationKind = "inherits"
	RelationImplements RelationKind = "implements"
	RelationUses       RelationKind = "uses"
	RelationContains   RelationKind = "contains"
)

// Valid reports whether k is one of the known relation kinds.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationCalls, RelationImports, RelationInherits,
		RelationImplements, RelationUses, RelationContains:
		return true
	}
	return false
}

// Relation is a directed edge between two symbols. Relations drive graph
// expansion; they are never ranked directly.
type Relation struct {
	From       ID           `json:"from"`
	To         ID           `json:"to"`
	Kind       RelationKind `json:"kind"`
	FilePath   string       `json:"file_path"` // location of the reference
	Line       int          `json:"line"`
	Confidence float64      `json:"confidence"` // [0, 1]
}
