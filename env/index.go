package env

import "sort"

// KClosestToIntersection returns at most n vehicle ids on edge ordered by
// ascending distance to the downstream intersection. It never pads; callers
// that need fixed-width output do their own zero fill.
func KClosestToIntersection(k *Kernel, edge string, n int) []string {
	if n <= 0 {
		return nil
	}
	ids := k.Vehicle.IDsByEdge(edge)
	if len(ids) == 0 {
		return nil
	}
	length := k.Network.EdgeLength(edge)
	type entry struct {
		id   string
		dist float64
	}
	entries := make([]entry, len(ids))
	for i, id := range ids {
		entries[i] = entry{id: id, dist: length - k.Vehicle.Position(id)}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].dist != entries[j].dist {
			return entries[i].dist < entries[j].dist
		}
		return entries[i].id < entries[j].id
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}
