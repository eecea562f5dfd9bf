package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajaxzhan/simos/internal/logging"
)

// maxScriptDepth bounds scripts that run other scripts.
const maxScriptDepth = 16

// runScript interprets content line by line. Variables and the working
// directory are local to the run: assignments and cd never reach the
// caller. A failing line marks the run as failed but does not stop it.
func (t *Terminal) runScript(path, content string, args []string, caller *scope) Result {
	if caller.depth >= maxScriptDepth {
		return Result{Output: []string{path + ": maximum script depth exceeded"}, Status: StatusError}
	}

	local := &scope{
		user:   caller.user,
		cwd:    caller.cwd,
		vars:   make(map[string]string, len(caller.vars)+12),
		script: path,
		depth:  caller.depth + 1,
	}
	for k, v := range caller.vars {
		local.vars[k] = v
	}
	for i := 0; i <= 9; i++ {
		delete(local.vars, strconv.Itoa(i))
	}
	local.vars["0"] = path
	for i, a := range args {
		if i >= 9 {
			break
		}
		local.vars[strconv.Itoa(i+1)] = a
	}
	local.vars["#"] = strconv.Itoa(len(args))

	var (
		out    []string
		failed bool
	)
	for n, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, _, ok := ParseAssignment(line); ok {
			local.vars[name] = unquote(Expand(rawValue(line), local.lookup))
			continue
		}

		step, redir := t.runLine(line, local)
		if step.Pending() {
			out = append(out, fmt.Sprintf("%s: line %d: cannot read input in a script", path, n+1))
			failed = true
			local.vars["?"] = strconv.Itoa(StatusError)
			continue
		}
		res := t.redirect(step.Result, redir, local)
		out = append(out, res.Output...)
		local.vars["?"] = strconv.Itoa(res.Status)
		if res.Failed() {
			failed = true
		}
		if res.Push != nil {
			out = append(out, fmt.Sprintf("%s: line %d: cannot switch user in a script", path, n+1))
			failed = true
		}
		if res.Cwd != "" {
			local.cwd = res.Cwd
		}
		if res.Exit {
			break
		}
	}

	logging.Debug("Script finished",
		logging.String("path", path),
		logging.String("user", local.user.Username),
		logging.Bool("failed", failed))

	status := StatusOK
	if failed {
		status = StatusError
	}
	return Result{Output: out, Status: status}
}

// rawValue returns the text after the first '=' of an assignment line.
func rawValue(line string) string {
	line = strings.TrimSpace(line)
	return line[strings.IndexByte(line, '=')+1:]
}
