package game

// Director picks the next move for an automated player. It only ever sees
// the public view of a board, so it cannot peek at hidden mines.
type Director interface {
	// Next returns the move to play, or false when there is nothing left
	// to do
	Next(board PublicBoard) (Move, bool)
}
