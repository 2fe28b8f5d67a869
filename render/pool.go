package render

import (
	"github.com/rivo/uniseg"
)

const (
	maxPoolSlots = 1 << 24
	maxRefcount  = ^uint32(0)
)

// GraphemeID references an interned cluster. The display width rides along so
// cells never have to consult the pool on the hot path.
type GraphemeID struct {
	slot  uint32
	width uint8
}

// Width returns the cached display width of the cluster.
func (id GraphemeID) Width() int {
	return int(id.width)
}

type graphemeSlotEntry struct {
	text     string
	width    uint8
	refcount uint32
	live     bool
}

// GraphemePool interns grapheme clusters wider than a single Unicode scalar.
// Slot ids remain valid until a GC pass finds them unreferenced; callers must
// not hold an id across a GC boundary unless it appears in the reference
// buffer. Mutation happens only on the writer's thread.
type GraphemePool struct {
	slots  []graphemeSlotEntry
	lookup map[string]uint32
	free   []uint32
}

// NewGraphemePool creates an empty pool.
func NewGraphemePool() *GraphemePool {
	return &GraphemePool{
		lookup: make(map[string]uint32),
	}
}

// ClusterWidth measures a cluster's display width, clamped to 127 so it fits
// the 7 bits the cell encoding reserves.
func ClusterWidth(text string) uint8 {
	w := uniseg.StringWidth(text)
	if w < 0 {
		w = 0
	}
	if w > 127 {
		w = 127
	}
	return uint8(w)
}

// Intern returns the id for text, allocating a slot if needed. Existing
// entries get a refcount bump. ok is false when the slot space is exhausted;
// callers fall back to emitting U+FFFD.
func (p *GraphemePool) Intern(text string) (GraphemeID, bool) {
	if slot, hit := p.lookup[text]; hit {
		e := &p.slots[slot]
		if e.refcount < maxRefcount {
			e.refcount++
		}
		return GraphemeID{slot: slot, width: e.width}, true
	}

	width := ClusterWidth(text)

	var slot uint32
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[slot] = graphemeSlotEntry{text: text, width: width, refcount: 1, live: true}
	} else {
		if len(p.slots) >= maxPoolSlots {
			return GraphemeID{}, false
		}
		slot = uint32(len(p.slots))
		p.slots = append(p.slots, graphemeSlotEntry{text: text, width: width, refcount: 1, live: true})
	}

	p.lookup[text] = slot
	return GraphemeID{slot: slot, width: width}, true
}

// Get returns the interned text, or ok=false for a stale or invalid id.
func (p *GraphemePool) Get(id GraphemeID) (string, bool) {
	if int(id.slot) >= len(p.slots) {
		return "", false
	}
	e := &p.slots[id.slot]
	if !e.live {
		return "", false
	}
	return e.text, true
}

// GetWidth returns the cached width for a live id, 0 otherwise.
func (p *GraphemePool) GetWidth(id GraphemeID) int {
	if int(id.slot) >= len(p.slots) || !p.slots[id.slot].live {
		return 0
	}
	return int(p.slots[id.slot].width)
}

// Len returns the number of live slots.
func (p *GraphemePool) Len() int {
	return len(p.lookup)
}

// GC rebuilds refcounts from the cells of the reference buffer and frees
// slots no longer referenced. Single mark pass; ids appearing in live stay
// valid with their mapping intact.
func (p *GraphemePool) GC(live *Buffer) {
	for i := range p.slots {
		p.slots[i].refcount = 0
	}

	if live != nil {
		for _, c := range live.cells {
			if !c.Content.IsGrapheme() {
				continue
			}
			slot := uint32(c.Content) & graphemeSlot
			if int(slot) < len(p.slots) && p.slots[slot].live {
				e := &p.slots[slot]
				if e.refcount < maxRefcount {
					e.refcount++
				}
			}
		}
	}

	for i := range p.slots {
		e := &p.slots[i]
		if e.live && e.refcount == 0 {
			delete(p.lookup, e.text)
			*e = graphemeSlotEntry{}
			p.free = append(p.free, uint32(i))
		}
	}
}

// SegmentClusters splits text into grapheme clusters in display order.
// Single-scalar clusters are returned as-is; the caller decides whether a
// cluster needs interning or fits a direct cell.
func SegmentClusters(text string, fn func(cluster string, width int)) {
	state := -1
	rest := text
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		fn(cluster, w)
	}
}
