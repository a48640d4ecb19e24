package shell

import (
	"path"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Risk is an advisory annotation shown next to a suggested command.
// It never blocks execution.
type Risk struct {
	Reasons []string
}

func (r Risk) Risky() bool { return len(r.Reasons) > 0 }

func (r Risk) String() string { return strings.Join(r.Reasons, "; ") }

var destructive = map[string]bool{
	"rm": true, "rmdir": true, "mv": true, "dd": true, "mkfs": true, "shred": true,
	"chmod": true, "chown": true, "shutdown": true, "reboot": true, "halt": true,
	"poweroff": true, "kill": true, "killall": true, "pkill": true, "truncate": true,
}

var elevate = map[string]bool{"sudo": true, "doas": true, "su": true}

// Analyze parses command as bash and reports anything worth a second look.
func Analyze(command string) Risk {
	var risk Risk
	seen := map[string]bool{}
	add := func(reason string) {
		if !seen[reason] {
			seen[reason] = true
			risk.Reasons = append(risk.Reasons, reason)
		}
	}

	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		add("does not parse as a shell command")
		return risk
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			for _, prog := range programs(n) {
				switch {
				case elevate[prog]:
					add("runs with elevated privileges (" + prog + ")")
				case destructive[prog] || strings.HasPrefix(prog, "mkfs."):
					add("modifies or removes files/processes (" + prog + ")")
				}
			}
		case *syntax.Redirect:
			switch n.Op {
			case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll, syntax.ClbOut:
				if n.Word == nil || n.Word.Lit() != "/dev/null" {
					add("writes to a file via redirection")
				}
			}
		case *syntax.CmdSubst:
			add("uses command substitution")
		}
		return true
	})
	return risk
}

// programs returns the command name of call plus the command wrapped by
// sudo/env/xargs style prefixes, e.g. "sudo rm -rf x" yields [sudo rm].
func programs(call *syntax.CallExpr) []string {
	var out []string
	wrapper := true
	for _, w := range call.Args {
		lit := w.Lit()
		if lit == "" {
			if len(out) == 0 {
				return out
			}
			continue
		}
		if !wrapper {
			break
		}
		if len(out) > 0 && strings.HasPrefix(lit, "-") {
			continue
		}
		name := path.Base(lit)
		out = append(out, name)
		switch name {
		case "sudo", "doas", "env", "xargs", "nohup", "time", "nice", "command", "exec":
		default:
			wrapper = false
		}
	}
	return out
}
