package selfplay

import (
	"fmt"
	"strings"

	"github.com/brensch/tetrai/game"
)

// PrintBoard renders the settled cells ('#'), the current piece ('@') and the
// counters for debugging.
func PrintBoard(state *game.GameState) string {
	grid := state.Grid()
	cur := make(map[game.Point]bool, 4)
	for _, c := range state.Current().Cells() {
		cur[c] = true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n=== score=%d lines=%d level=%d next=%s ===\n",
		state.Score(), state.Lines(), state.Level(), state.Next()))
	for y := 0; y < game.Height; y++ {
		sb.WriteByte('|')
		for x := 0; x < game.Width; x++ {
			switch {
			case cur[game.Point{X: x, Y: y}]:
				sb.WriteString("@ ")
			case grid[y][x] != 0:
				sb.WriteString("# ")
			default:
				sb.WriteString(". ")
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+" + strings.Repeat("--", game.Width) + "+\n")
	if state.Terminal() {
		sb.WriteString("GAME OVER\n")
	}
	return sb.String()
}
