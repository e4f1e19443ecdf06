package memory

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// DumpPolicy decides which unlocked buffers leave memory.
type DumpPolicy interface {
	// Name identifies the policy in configuration and logs.
	Name() string

	// Select returns the buffers to dump among candidates, which are
	// unlocked, resident, owned buffers sorted least recently used
	// first. resident is the total resident size of every buffer of
	// the manager, locked or not.
	Select(candidates []*BufferObject, resident int64) []*BufferObject
}

// NeverDump keeps every buffer in memory.
type NeverDump struct{}

// Name implements DumpPolicy.
func (NeverDump) Name() string { return "never" }

// Select implements DumpPolicy.
func (NeverDump) Select([]*BufferObject, int64) []*BufferObject { return nil }

// AlwaysDump evicts every buffer as soon as it is unlocked.
type AlwaysDump struct{}

// Name implements DumpPolicy.
func (AlwaysDump) Name() string { return "always" }

// Select implements DumpPolicy.
func (AlwaysDump) Select(candidates []*BufferObject, _ int64) []*BufferObject {
	return candidates
}

// BarrierDump evicts least recently used buffers while the resident size
// exceeds Barrier bytes.
type BarrierDump struct {
	Barrier int64
}

// Name implements DumpPolicy.
func (BarrierDump) Name() string { return "barrier" }

// Select implements DumpPolicy.
func (p BarrierDump) Select(candidates []*BufferObject, resident int64) []*BufferObject {
	var selected []*BufferObject
	for _, b := range candidates {
		if resident <= p.Barrier {
			break
		}
		selected = append(selected, b)
		resident -= int64(b.Size())
	}
	return selected
}

// ParseDumpPolicy builds a policy from its configuration name. barrier is
// a human readable size ("512MB", "1 GiB") used by the barrier policy.
func ParseDumpPolicy(name, barrier string) (DumpPolicy, error) {
	switch name {
	case "", "never":
		return NeverDump{}, nil
	case "always":
		return AlwaysDump{}, nil
	case "barrier":
		size, err := humanize.ParseBytes(barrier)
		if err != nil {
			return nil, fmt.Errorf("invalid dump barrier %q: %w", barrier, err)
		}
		return BarrierDump{Barrier: int64(size)}, nil
	default:
		return nil, fmt.Errorf("unknown dump policy: %q", name)
	}
}
