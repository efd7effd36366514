package shell

import (
	"errors"
	"net/http"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

const scriptHTTPTimeout = 30 * time.Second

func getShell(L *lua.LState) *ShellController {
	shell := L.GetGlobal("gambit_shell")
	ud, ok := shell.(*lua.LUserData)
	if !ok {
		panic("luserdata not right type")
	}
	sc, ok := ud.Value.(*ShellController)
	if !ok {
		panic("shellcontroller not right type")
	}
	return sc
}

// luaCommand exposes a shell command to scripts. The Lua function takes
// the rest of the command line as one string and returns the command's
// output, or a string starting with "ERROR: ".
func luaCommand(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		line := name
		if L.GetTop() > 0 {
			line += " " + L.ToString(1)
		}
		sc := getShell(L)
		r, err := sc.Execute(line)
		if err != nil {
			log.Err(err).Str("cmd", name).Msg("error-executing-script-command")
			L.Push(lua.LString("ERROR: " + err.Error()))
			return 1
		}
		if r == nil {
			L.Push(lua.LString(""))
		} else {
			L.Push(lua.LString(r.message))
		}
		// return number of results pushed to stack.
		return 1
	}
}

// Over is true once the current game has ended.
func Over(L *lua.LState) int {
	sc := getShell(L)
	L.Push(lua.LBool(sc.game != nil && sc.game.IsOver()))
	return 1
}

var scriptCommands = []string{
	"new", "move", "engine", "difficulty", "fen", "board", "pgn", "load", "status",
	"moves", "reset", "autoplay", "games",
}

func (sc *ShellController) script(cmd *shellcmd) (*Response, error) {
	if cmd.args == nil {
		return nil, errors.New("need arguments for script")
	}

	filepath := cmd.args[0]

	L := lua.NewState()
	defer L.Close()
	// require("json") and require("http") let scripts post results or
	// fetch positions.
	luajson.Preload(L)
	L.PreloadModule("http", gluahttp.NewHttpModule(&http.Client{Timeout: scriptHTTPTimeout}).Loader)

	lsc := L.NewUserData()
	lsc.Value = sc

	L.SetGlobal("gambit_shell", lsc)
	for _, name := range scriptCommands {
		L.SetGlobal("gambit_"+name, L.NewFunction(luaCommand(name)))
	}
	L.SetGlobal("gambit_over", L.NewFunction(Over))

	if err := L.DoFile(filepath); err != nil {
		log.Err(err).Msg("there was a error")
		return nil, err
	}
	return nil, nil
}
