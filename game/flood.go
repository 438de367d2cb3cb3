package game

import (
	"github.com/gammazero/deque"

	"github.com/they4kman/sweepd/util/collections"
)

type NeighborGetter func(Coord) []Coord

// Visitor is called once per reached cell and reports whether the flood
// should continue through the cell's neighbors
type Visitor func(Coord) bool

// flood performs a breadth-first walk from origin, visiting each cell at
// most once
func flood(origin Coord, visit Visitor, getNeighbors NeighborGetter) {
	visited := collections.NewSet(origin)
	var visitQueue deque.Deque[Coord]
	visitQueue.PushBack(origin)

	for visitQueue.Len() > 0 {
		coord := visitQueue.PopFront()
		if !visit(coord) {
			continue
		}

		for _, neighbor := range getNeighbors(coord) {
			if visited.Contains(neighbor) {
				continue
			}
			visited.Add(neighbor)
			visitQueue.PushBack(neighbor)
		}
	}
}

// OpenSurroundingCells opens the connected zero-adjacency region around
// origin together with its safe border, returning how many cells it opened.
// Mined and marked cells are never opened and never expanded through, except
// that a marked origin still spreads to its neighbors.
func (board *Board) OpenSurroundingCells(origin Coord) int {
	numOpened := 0

	flood(
		origin,
		func(coord Coord) bool {
			cell := board.cellAt(coord)
			if cell.mined {
				return false
			}
			if cell.state == Unopened {
				cell.ApplyAction(Open)
				numOpened++
			}
			return (cell.state == Opened || coord == origin) && cell.surroundingMines == 0
		},
		board.Neighbors,
	)

	return numOpened
}
