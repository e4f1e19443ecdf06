package meshtools

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"sightdata/pkg/data"
	"sightdata/pkg/mesh"
)

// site is a mesh point stored in the tree.
type site struct {
	pos [3]float64
	id  mesh.PointID
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.pos[d] - c.(site).pos[d]
}

func (s site) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (s site) Distance(c kdtree.Comparable) float64 {
	o := c.(site)
	var sum float64
	for i := range s.pos {
		d := s.pos[i] - o.pos[i]
		sum += d * d
	}
	return sum
}

type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return plane{sites: s, Dim: d}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane sorts sites along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool { return p.sites[i].pos[p.Dim] < p.sites[j].pos[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

// Locator answers nearest point queries on a snapshot of the mesh points.
type Locator struct {
	tree *kdtree.Tree
}

// NewLocator builds a locator over the current points of m. Later changes
// to m are not seen by the locator.
func NewLocator(m *mesh.Mesh) (*Locator, error) {
	if m.NumPoints() == 0 {
		return nil, fmt.Errorf("locator over an empty mesh: %w", data.ErrShape)
	}

	locks, err := m.Lock()
	if err != nil {
		return nil, err
	}
	defer locks.Release()

	points, err := mesh.View[mesh.Point](m)
	if err != nil {
		return nil, err
	}
	s := make(sites, len(points))
	for i, p := range points {
		s[i] = site{pos: [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}, id: mesh.PointID(i)}
	}
	return &Locator{tree: kdtree.New(s, false)}, nil
}

func query(p r3.Vec) site {
	return site{pos: [3]float64{p.X, p.Y, p.Z}}
}

// Nearest returns the point closest to p and its distance.
func (l *Locator) Nearest(p r3.Vec) (mesh.PointID, float64) {
	c, d := l.tree.Nearest(query(p))
	return c.(site).id, math.Sqrt(d)
}

// Within returns the points at most radius away from p, in increasing
// index order.
func (l *Locator) Within(p r3.Vec, radius float64) []mesh.PointID {
	keeper := kdtree.NewDistKeeper(radius * radius)
	l.tree.NearestSet(keeper, query(p))

	var ids []mesh.PointID
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		ids = append(ids, c.Comparable.(site).id)
	}
	slices.Sort(ids)
	return ids
}
