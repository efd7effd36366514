package game

import (
	"fmt"
	"strings"
)

func splitSubN(s string, n int) []string {
	var subs []string
	runes := []rune(s)
	for len(runes) > n {
		subs = append(subs, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		subs = append(subs, string(runes))
	}
	return subs
}

// addText writes text to the right of the board, wrapping long lines onto
// the rows below.
func addText(lines *[]string, row int, hpad int, text string) int {
	maxTextSize := 42
	for _, chunk := range splitSubN(text, maxTextSize) {
		if row >= len(*lines) {
			*lines = append(*lines, strings.Repeat(" ", len([]rune((*lines)[0]))))
		}
		(*lines)[row] = (*lines)[row] + strings.Repeat(" ", hpad) + chunk
		row++
	}
	return row
}

func padLines(lines []string) []string {
	width := 0
	for _, l := range lines {
		width = max(width, len([]rune(l)))
	}
	for i, l := range lines {
		lines[i] = l + strings.Repeat(" ", width-len([]rune(l)))
	}
	return lines
}

// ToDisplayText draws the board, white at the bottom, with the game status
// alongside it.
func (g *Game) ToDisplayText(thinking bool) string {
	raw := g.chess.Position().Board().Draw()
	lines := padLines(strings.Split(strings.Trim(raw, "\n"), "\n"))

	row := 1
	row = addText(&lines, row, 4, fmt.Sprintf("You play %s, engine is %s", g.humanColor.Name(), g.level))
	row = addText(&lines, row, 4, g.Status(thinking))
	row++
	moves := g.Moves()
	var sb strings.Builder
	for i, m := range moves {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		}
		sb.WriteString(m)
		sb.WriteString(" ")
	}
	if sb.Len() > 0 {
		addText(&lines, row, 4, strings.TrimSpace(sb.String()))
	}

	return strings.Join(lines, "\n") + "\n\n" + g.FEN() + "\n"
}
