package render

// LinkID references an interned OSC-8 hyperlink target. 0 means no link.
type LinkID uint32

type linkSlotEntry struct {
	url      string
	refcount uint32
	live     bool
}

// LinkRegistry interns hyperlink URLs with the same 24-bit id discipline as
// the grapheme pool. Id 0 is reserved for "no link"; slot i is id i+1.
type LinkRegistry struct {
	slots  []linkSlotEntry
	lookup map[string]LinkID
	free   []uint32
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{
		lookup: make(map[string]LinkID),
	}
}

// Intern returns the id for url, allocating a slot if needed. ok is false
// when the 24-bit id space is exhausted; callers emit the cell without a link.
func (r *LinkRegistry) Intern(url string) (LinkID, bool) {
	if id, hit := r.lookup[url]; hit {
		e := &r.slots[id-1]
		if e.refcount < maxRefcount {
			e.refcount++
		}
		return id, true
	}

	var slot uint32
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[slot] = linkSlotEntry{url: url, refcount: 1, live: true}
	} else {
		if len(r.slots) >= maxPoolSlots-1 {
			return 0, false
		}
		slot = uint32(len(r.slots))
		r.slots = append(r.slots, linkSlotEntry{url: url, refcount: 1, live: true})
	}

	id := LinkID(slot + 1)
	r.lookup[url] = id
	return id, true
}

// Get returns the URL for a live id.
func (r *LinkRegistry) Get(id LinkID) (string, bool) {
	if id == 0 || int(id) > len(r.slots) {
		return "", false
	}
	e := &r.slots[id-1]
	if !e.live {
		return "", false
	}
	return e.url, true
}

// Len returns the number of live entries.
func (r *LinkRegistry) Len() int {
	return len(r.lookup)
}

// GC rebuilds refcounts from the link ids embedded in the reference buffer's
// cell attributes and frees unreferenced slots.
func (r *LinkRegistry) GC(live *Buffer) {
	for i := range r.slots {
		r.slots[i].refcount = 0
	}

	if live != nil {
		for _, c := range live.cells {
			id := c.Attrs.Link()
			if id == 0 || int(id) > len(r.slots) {
				continue
			}
			e := &r.slots[id-1]
			if e.live && e.refcount < maxRefcount {
				e.refcount++
			}
		}
	}

	for i := range r.slots {
		e := &r.slots[i]
		if e.live && e.refcount == 0 {
			delete(r.lookup, e.url)
			*e = linkSlotEntry{}
			r.free = append(r.free, uint32(i))
		}
	}
}
