// internal/game/rules.go
package game

import "github.com/google/uuid"

// Match scoring rules: first to the target with a two point lead wins,
// with a hard cap that ends deuce play outright.
const (
	WinTarget = 7
	WinBy     = 2
	HardCap   = 11
)

// Winner evaluates the win condition for a pair of players. It is checked
// immediately after every scoring event and once more per tick as a safety
// net. Returns the winner's id and true when the match is decided.
func Winner(players [2]uuid.UUID, scores map[uuid.UUID]int) (uuid.UUID, bool) {
	a := scores[players[0]]
	b := scores[players[1]]

	max, min := a, b
	leader := players[0]
	if b > a {
		max, min = b, a
		leader = players[1]
	}

	if max >= HardCap {
		return leader, true
	}
	if max >= WinTarget && max-min >= WinBy {
		return leader, true
	}
	return uuid.Nil, false
}
