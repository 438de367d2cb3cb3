// Package directortest builds public boards for exercising directors
package directortest

import (
	"github.com/they4kman/sweepd/game"
)

// Board parses layout into the view a director is handed. Each character is
// one cell: '#' unopened, 'f' flagged, '?' question mark, '.' an opened cell
// with no surrounding mines, '1'-'8' an opened number.
func Board(numMines int, layout ...string) game.PublicBoard {
	board := game.PublicBoard{
		RowSize:  len(layout),
		NumMines: numMines,
		Rows:     make([][]game.PublicCell, len(layout)),
	}
	for row, line := range layout {
		board.ColumnSize = len(line)
		board.Rows[row] = make([]game.PublicCell, len(line))
		for column, glyph := range line {
			board.Rows[row][column] = cell(glyph)
		}
	}
	return board
}

func cell(glyph rune) game.PublicCell {
	switch glyph {
	case '#':
		return game.PublicCell{State: game.Unopened}
	case 'f':
		return game.PublicCell{State: game.Flagged}
	case '?':
		return game.PublicCell{State: game.QuestionMark}
	case '.':
		return opened(0)
	default:
		if glyph >= '1' && glyph <= '8' {
			return opened(int(glyph - '0'))
		}
		panic("unknown cell glyph " + string(glyph))
	}
}

func opened(surroundingMines int) game.PublicCell {
	mined := false
	return game.PublicCell{
		State:            game.Opened,
		Mined:            &mined,
		SurroundingMines: &surroundingMines,
	}
}
