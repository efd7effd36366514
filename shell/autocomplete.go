package shell

import (
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/samber/lo"

	"github.com/domino14/gambit/difficulty"
)

// ShellCompleter provides context-aware autocomplete for shell commands
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"new": {
		Options: []string{"-difficulty"},
		Args:    []string{"white", "black", "random"},
	},
	"autoplay": {
		Options: []string{"-games", "-threads", "-white", "-black", "-file"},
	},
	"games": {
		Options: []string{"-n"},
	},
	"help": {
		Args: []string{"autoplay", "script"},
	},
}

var commandNames = []string{
	"new", "move", "engine", "difficulty", "fen", "board", "moves", "status",
	"pgn", "load", "reset", "presets", "autoplay", "games", "script", "help", "exit",
}

func (c *ShellCompleter) levels() []string {
	return lo.Map(c.sc.presets.Levels(), func(l difficulty.Level, _ int) string {
		return string(l)
	})
}

// Do implements the readline.AutoComplete interface
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])

	fields, err := shellquote.Split(text)
	if err != nil {
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}

		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch {
		case lastCompleteField == "-difficulty" || lastCompleteField == "-white" ||
			lastCompleteField == "-black":
			completions = c.levels()
		case cmdName == "difficulty":
			completions = c.levels()
		case cmdName == "move" && c.sc.game != nil:
			completions = c.sc.game.ValidMoves()
		}

		if completions == nil {
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			// Return only the part that needs to be added
			matches = append(matches, []rune(completion[len(prefix):]))
		}
	}
	return matches, len(prefix)
}
