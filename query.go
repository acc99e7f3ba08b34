package xtree

// Window returns every indexed point that falls inside region, pruning
// subtrees whose MBR does not intersect it. This is a minimal
// containment query; full query planning (ranges over multiple
// predicates, k-NN, plan costing) is out of scope.
func (t *Tree) Window(region MBR) ([]Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Point
	if err := t.windowVisit(rootPageID, region, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) windowVisit(pageID uint32, region MBR, out *[]Point) error {
	n, err := t.ps.read(pageID)
	if err != nil {
		return err
	}

	if n.IsLeaf() {
		for _, e := range n.Leaves {
			if contains(region, e.mbr()) {
				*out = append(*out, Point{ID: e.PointID, Coords: append([]float64(nil), e.Coords...)})
			}
		}
		return nil
	}

	for _, e := range n.Dirs {
		if !intersects(e.MBR, region) {
			continue
		}
		if err := t.windowVisit(e.ChildPageID, region, out); err != nil {
			return err
		}
	}
	return nil
}
