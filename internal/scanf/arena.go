package scanf

import "bytes"

// Arena is contiguous memory holding adjacent regions in allocation order,
// the way a compiler lays out neighbouring local arrays. Writes through a
// region are not bounded by the region, only by the arena: bytes that run
// off a region land in the next one, bytes that run off the arena are
// counted as spilled and dropped.
type Arena struct {
	mem     []byte
	regions []*Region
	spilled int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc appends a region of len(init) bytes initialized with init.
func (a *Arena) Alloc(name string, init []byte) *Region {
	r := &Region{
		arena: a,
		name:  name,
		start: len(a.mem),
		size:  len(init),
	}
	a.mem = append(a.mem, init...)
	a.regions = append(a.regions, r)
	return r
}

// AllocFilled appends a region of size bytes, all set to fill.
func (a *Arena) AllocFilled(name string, size int, fill byte) *Region {
	return a.Alloc(name, bytes.Repeat([]byte{fill}, size))
}

// Region returns the region called name, or nil.
func (a *Arena) Region(name string) *Region {
	for _, r := range a.regions {
		if r.name == name {
			return r
		}
	}
	return nil
}

// Regions returns all regions in layout order.
func (a *Arena) Regions() []*Region {
	return a.regions
}

// Len returns the arena size in bytes.
func (a *Arena) Len() int {
	return len(a.mem)
}

// Spilled returns how many bytes were written past the end of the arena.
func (a *Arena) Spilled() int {
	return a.spilled
}

func (a *Arena) store(off int, b byte) {
	if off >= len(a.mem) {
		a.spilled++
		return
	}
	a.mem[off] = b
}

// Region is a named buffer inside an Arena.
type Region struct {
	arena   *Arena
	name    string
	start   int
	size    int
	written int
}

// Name returns the region's name.
func (r *Region) Name() string {
	return r.name
}

// Cap returns the region's capacity in bytes.
func (r *Region) Cap() int {
	return r.size
}

// Bytes returns the region's own storage. Modifying it modifies the arena.
func (r *Region) Bytes() []byte {
	return r.arena.mem[r.start : r.start+r.size]
}

// String reads the region like printf("%s"): from its first byte up to the
// first zero byte, continuing into later regions when the region itself
// holds no terminator.
func (r *Region) String() string {
	tail := r.arena.mem[r.start:]
	if i := bytes.IndexByte(tail, 0); i >= 0 {
		return string(tail[:i])
	}
	return string(tail)
}

// Written returns how many bytes the last conversion into r wrote,
// terminator included.
func (r *Region) Written() int {
	return r.written
}

// Overflow returns how many bytes the last conversion into r wrote past
// the end of r.
func (r *Region) Overflow() int {
	if r.written > r.size {
		return r.written - r.size
	}
	return 0
}

// write stores p at the start of r and appends a terminator when term is set.
func (r *Region) write(p []byte, term bool) {
	off := r.start
	for _, b := range p {
		r.arena.store(off, b)
		off++
	}
	r.written = len(p)
	if term {
		r.arena.store(off, 0)
		r.written++
	}
}
