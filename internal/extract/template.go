package extract

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotStructured means a template produced no records for non-empty output.
var ErrNotStructured = errors.New("output did not match template")

// Record is one row produced by a template, keyed by value name.
type Record map[string]string

type valueDef struct {
	name     string
	pattern  string
	required bool
	filldown bool
}

type lineAction int

const (
	actionNext lineAction = iota
	actionContinue
)

type rule struct {
	re        *regexp.Regexp
	line      lineAction
	record    bool
	clear     bool
	nextState string
}

// Template is a small state-machine text parser in the TextFSM format:
// "Value" declarations, a blank line, then named states holding "^regex ->
// Action" rules. Supported actions are Next, Continue, Record, Clear and
// their dotted combinations, optionally followed by a target state.
type Template struct {
	values []valueDef
	states map[string][]rule
}

var (
	valueLine   = regexp.MustCompile(`^Value\s+(?:((?:Required|Filldown|Key|Fillup)(?:,(?:Required|Filldown|Key|Fillup))*)\s+)?(\w+)\s+(\(.*\))\s*$`)
	stateName   = regexp.MustCompile(`^\w+$`)
	placeholder = regexp.MustCompile(`\$\{(\w+)\}`)
)

// ParseTemplate compiles template text.
func ParseTemplate(text string) (*Template, error) {
	t := &Template{states: make(map[string][]rule)}
	known := make(map[string]valueDef)

	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	current := ""
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(raw, "Value ") {
			if current != "" {
				return nil, fmt.Errorf("template line %d: value declared after states", lineNo)
			}
			m := valueLine.FindStringSubmatch(raw)
			if m == nil {
				return nil, fmt.Errorf("template line %d: malformed value %q", lineNo, raw)
			}
			v := valueDef{name: m[2], pattern: m[3]}
			for _, opt := range strings.Split(m[1], ",") {
				switch opt {
				case "Required":
					v.required = true
				case "Filldown":
					v.filldown = true
				}
			}
			if _, dup := known[v.name]; dup {
				return nil, fmt.Errorf("template line %d: duplicate value %s", lineNo, v.name)
			}
			known[v.name] = v
			t.values = append(t.values, v)
			continue
		}

		if raw[0] != ' ' && raw[0] != '\t' {
			if !stateName.MatchString(trimmed) {
				return nil, fmt.Errorf("template line %d: invalid state name %q", lineNo, trimmed)
			}
			current = trimmed
			if _, ok := t.states[current]; !ok {
				t.states[current] = nil
			}
			continue
		}

		if current == "" {
			return nil, fmt.Errorf("template line %d: rule outside of a state", lineNo)
		}
		r, err := compileRule(trimmed, known)
		if err != nil {
			return nil, fmt.Errorf("template line %d: %w", lineNo, err)
		}
		t.states[current] = append(t.states[current], r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.states["Start"]; !ok {
		return nil, errors.New("template has no Start state")
	}
	for name, rules := range t.states {
		for _, r := range rules {
			if r.nextState == "" {
				continue
			}
			if _, ok := t.states[r.nextState]; !ok {
				return nil, fmt.Errorf("state %s references unknown state %s", name, r.nextState)
			}
		}
	}
	return t, nil
}

// MustTemplate is ParseTemplate that panics on error. Used for built-in templates.
func MustTemplate(text string) *Template {
	t, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

func compileRule(text string, known map[string]valueDef) (rule, error) {
	if !strings.HasPrefix(text, "^") {
		return rule{}, fmt.Errorf("rule must start with ^: %q", text)
	}
	expr, action := text, ""
	if i := strings.LastIndex(text, " -> "); i >= 0 {
		expr, action = strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+4:])
	}

	var missing string
	expr = placeholder.ReplaceAllStringFunc(expr, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := known[name]
		if !ok {
			missing = name
			return m
		}
		return "(?P<" + name + ">" + v.pattern + ")"
	})
	if missing != "" {
		return rule{}, fmt.Errorf("unknown value %s", missing)
	}
	expr = strings.ReplaceAll(expr, "$$", "$")

	re, err := regexp.Compile(expr)
	if err != nil {
		return rule{}, err
	}
	r := rule{re: re}
	if action == "" {
		return r, nil
	}

	fields := strings.Fields(action)
	if len(fields) > 2 {
		return rule{}, fmt.Errorf("malformed action %q", action)
	}
	first := fields[0]
	if len(fields) == 2 {
		r.nextState = fields[1]
	}
	parsedOp := false
	for _, part := range strings.Split(first, ".") {
		switch part {
		case "Next":
			r.line = actionNext
			parsedOp = true
		case "Continue":
			r.line = actionContinue
			parsedOp = true
		case "Record":
			r.record = true
			parsedOp = true
		case "Clear":
			r.clear = true
			parsedOp = true
		default:
			if len(fields) == 1 && !strings.Contains(first, ".") && stateName.MatchString(part) {
				r.nextState = part
				continue
			}
			return rule{}, fmt.Errorf("unknown action %q", part)
		}
	}
	if !parsedOp && r.nextState == "" {
		return rule{}, fmt.Errorf("malformed action %q", action)
	}
	if r.line == actionContinue && r.nextState != "" {
		return rule{}, errors.New("continue action cannot change state")
	}
	return r, nil
}

// Parse runs the template over output. Non-empty output that yields no
// records returns ErrNotStructured.
func (t *Template) Parse(output string) ([]Record, error) {
	if t == nil {
		return nil, ErrNotStructured
	}
	cur := make(map[string]string, len(t.values))
	var out []Record

	emit := func() {
		populated := false
		for _, v := range t.values {
			val := cur[v.name]
			if v.required && val == "" {
				t.clear(cur, false)
				return
			}
			if val != "" && !v.filldown {
				populated = true
			}
		}
		if populated {
			rec := make(Record, len(t.values))
			for _, v := range t.values {
				rec[v.name] = cur[v.name]
			}
			out = append(out, rec)
		}
		t.clear(cur, false)
	}

	state := "Start"
	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		for _, r := range t.states[state] {
			m := r.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			for i, name := range r.re.SubexpNames() {
				if name == "" || i >= len(m) {
					continue
				}
				if t.declares(name) {
					cur[name] = strings.TrimSpace(m[i])
				}
			}
			if r.record {
				emit()
			}
			if r.clear {
				t.clear(cur, true)
			}
			if r.nextState != "" {
				state = r.nextState
			}
			if r.line == actionNext {
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	emit()

	if len(out) == 0 && strings.TrimSpace(output) != "" {
		return nil, ErrNotStructured
	}
	return out, nil
}

func (t *Template) declares(name string) bool {
	for _, v := range t.values {
		if v.name == name {
			return true
		}
	}
	return false
}

func (t *Template) clear(cur map[string]string, all bool) {
	for _, v := range t.values {
		if v.filldown && !all {
			continue
		}
		delete(cur, v.name)
	}
}
