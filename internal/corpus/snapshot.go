// Package corpus memoises the per-field document-frequency indexes that the
// TF-IDF relevance strategy needs, keyed by a fingerprint of the event corpus.
package corpus

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/index"
	"github.com/onnwee/eventchat/internal/relevance"
	"github.com/onnwee/eventchat/internal/text"
)

// ErrInvalidSnapshot is returned when an encoded snapshot cannot be decoded.
var ErrInvalidSnapshot = errors.New("invalid corpus snapshot")

// Snapshot holds one TermIndex per relevance field for a corpus.
// It is immutable once built and implements relevance.IndexSet.
type Snapshot struct {
	Fingerprint string
	BuiltAt     time.Time
	Documents   int

	indexes map[relevance.Field]*index.TermIndex
}

// Index implements relevance.IndexSet. Unknown fields yield nil, which scores 0.
func (s *Snapshot) Index(field relevance.Field) *index.TermIndex {
	if s == nil {
		return nil
	}
	return s.indexes[field]
}

// FieldTokens returns the token list a field contributes to its index, using
// the same tokenisation the search ranker applies to that field.
func FieldTokens(e *event.Event, field relevance.Field) []string {
	switch field {
	case relevance.FieldTitle:
		return text.Terms(e.Title)
	case relevance.FieldDescription:
		return text.Terms(e.Description)
	case relevance.FieldLocation:
		return text.Terms(e.Location.Description)
	case relevance.FieldTags:
		return e.Tags
	case relevance.FieldMembers:
		return e.Members
	default:
		return nil
	}
}

// BuildSnapshot indexes every field of events.
func BuildSnapshot(events []event.Event) *Snapshot {
	snap := &Snapshot{
		Fingerprint: Fingerprint(events),
		BuiltAt:     time.Now().UTC(),
		Documents:   len(events),
		indexes:     make(map[relevance.Field]*index.TermIndex, len(relevance.Fields)),
	}

	for _, field := range relevance.Fields {
		docs := make([][]string, len(events))
		for i := range events {
			docs[i] = FieldTokens(&events[i], field)
		}
		snap.indexes[field] = index.Build(docs)
	}
	return snap
}

// Fingerprint identifies the indexed content of events. It ignores ordering
// and fields that do not feed an index (visibility, dates, coordinates).
func Fingerprint(events []event.Event) string {
	digests := make([]string, len(events))
	h := sha256.New()
	for i := range events {
		h.Reset()
		writeEvent(h, &events[i])
		digests[i] = string(h.Sum(nil))
	}
	slices.Sort(digests)

	h.Reset()
	for _, d := range digests {
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeEvent(h hash.Hash, e *event.Event) {
	writeString(h, e.ID)
	writeString(h, e.Title)
	writeString(h, e.Description)
	writeString(h, e.Location.Description)
	writeStrings(h, e.Tags)
	writeStrings(h, e.Members)
}

// writeString length-prefixes s so adjacent fields cannot run together.
func writeString(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

func writeStrings(h hash.Hash, ss []string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(ss)))
	h.Write(n[:])
	for _, s := range ss {
		writeString(h, s)
	}
}

// encMode keeps sub-second build times.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// snapshotWire is the CBOR layout of a Snapshot. Fields are keyed by name so
// reordering relevance.Field constants does not corrupt stored snapshots.
type snapshotWire struct {
	Fingerprint string                      `cbor:"fp"`
	BuiltAt     time.Time                   `cbor:"built_at"`
	Documents   int                         `cbor:"docs"`
	Indexes     map[string]*index.TermIndex `cbor:"indexes"`
}

// MarshalCBOR encodes the snapshot.
func (s *Snapshot) MarshalCBOR() ([]byte, error) {
	w := snapshotWire{
		Fingerprint: s.Fingerprint,
		BuiltAt:     s.BuiltAt,
		Documents:   s.Documents,
		Indexes:     make(map[string]*index.TermIndex, len(s.indexes)),
	}
	for field, idx := range s.indexes {
		w.Indexes[field.String()] = idx
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes a snapshot written by MarshalCBOR. Every field index
// must be present.
func (s *Snapshot) UnmarshalCBOR(data []byte) error {
	var w snapshotWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	indexes := make(map[relevance.Field]*index.TermIndex, len(relevance.Fields))
	for _, field := range relevance.Fields {
		idx, ok := w.Indexes[field.String()]
		if !ok || idx == nil {
			return fmt.Errorf("%w: missing %s index", ErrInvalidSnapshot, field)
		}
		indexes[field] = idx
	}

	*s = Snapshot{
		Fingerprint: w.Fingerprint,
		BuiltAt:     w.BuiltAt,
		Documents:   w.Documents,
		indexes:     indexes,
	}
	return nil
}
