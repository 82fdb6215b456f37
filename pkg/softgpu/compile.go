package softgpu

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kjkrol/gokpick/pkg/gfx"
)

type shader struct {
	stage    gfx.ShaderStage
	source   string
	compiled bool
	log      string
	pass     string
	inputs   []gfx.ProgramInput
}

type program struct {
	linked   bool
	log      string
	kernel   kernel
	inputs   []gfx.ProgramInput
	uniforms map[string][]float32
}

var (
	inputDecl = regexp.MustCompile(`^(?:layout\s*\([^)]*\)\s*)?in\s+(\w+)\s+(\w+)\s*;$`)
	inputType = map[string]gfx.InputType{
		"float": gfx.InputFloat,
		"vec2":  gfx.InputVec2,
		"vec3":  gfx.InputVec3,
		"vec4":  gfx.InputVec4,
		"uint":  gfx.InputUint,
		"uvec2": gfx.InputUVec2,
		"uvec3": gfx.InputUVec3,
		"uvec4": gfx.InputUVec4,
	}
)

type sourceLine struct {
	number int
	text   string
}

// preprocess strips comments and evaluates #define / #ifdef / #ifndef /
// #else / #endif. It returns the active lines and the defined names.
func preprocess(source string) ([]sourceLine, map[string]string, error) {
	source = stripBlockComments(source)
	defines := make(map[string]string)
	// Each frame records whether the enclosing branch is active and whether
	// #else has been seen.
	type frame struct {
		parentActive bool
		active       bool
		sawElse      bool
		line         int
	}
	var stack []frame
	active := true
	var out []sourceLine

	for i, raw := range strings.Split(source, "\n") {
		n := i + 1
		text := raw
		if idx := strings.Index(text, "//"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if !strings.HasPrefix(text, "#") {
			if active && text != "" {
				out = append(out, sourceLine{number: n, text: text})
			}
			continue
		}
		fields := strings.Fields(strings.TrimSpace(text[1:]))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "version", "extension", "pragma":
		case "define":
			if len(fields) < 2 {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#define' : missing macro name", n)
			}
			if active {
				defines[fields[1]] = strings.Join(fields[2:], " ")
			}
		case "undef":
			if len(fields) < 2 {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#undef' : missing macro name", n)
			}
			if active {
				delete(defines, fields[1])
			}
		case "ifdef", "ifndef":
			if len(fields) < 2 {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#%s' : missing macro name", n, fields[0])
			}
			_, defined := defines[fields[1]]
			cond := defined == (fields[0] == "ifdef")
			stack = append(stack, frame{parentActive: active, active: active && cond, line: n})
			active = active && cond
		case "else":
			if len(stack) == 0 {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#else' : unexpected #else", n)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#else' : #else after #else", n)
			}
			top.sawElse = true
			top.active = top.parentActive && !top.active
			active = top.active
		case "endif":
			if len(stack) == 0 {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#endif' : unexpected #endif", n)
			}
			active = stack[len(stack)-1].parentActive
			stack = stack[:len(stack)-1]
		default:
			if active {
				return nil, nil, fmt.Errorf("ERROR: 0:%d: '#%s' : unsupported preprocessor directive", n, fields[0])
			}
		}
	}
	if len(stack) > 0 {
		return nil, nil, fmt.Errorf("ERROR: 0:%d: '#ifdef' : unterminated conditional directive", stack[len(stack)-1].line)
	}
	return out, defines, nil
}

func stripBlockComments(source string) string {
	var sb strings.Builder
	for {
		start := strings.Index(source, "/*")
		if start < 0 {
			sb.WriteString(source)
			return sb.String()
		}
		sb.WriteString(source[:start])
		end := strings.Index(source[start+2:], "*/")
		if end < 0 {
			return sb.String()
		}
		// Keep line numbering stable.
		sb.WriteString(strings.Repeat("\n", strings.Count(source[start:start+2+end+2], "\n")))
		source = source[start+2+end+2:]
	}
}

// compile checks the structure of a stage and selects the kernel for its
// pass. Vertex stages also record their declared inputs.
func compile(s *shader) {
	lines, defines, err := preprocess(s.source)
	if err != nil {
		s.log = err.Error()
		return
	}

	var passes []string
	for name := range defines {
		if strings.HasPrefix(name, "PASS_") {
			passes = append(passes, name)
		}
	}
	sort.Strings(passes)
	switch {
	case len(passes) == 0:
		s.log = "ERROR: 0:0: no PASS_ define selects a program"
		return
	case len(passes) > 1:
		s.log = fmt.Sprintf("ERROR: 0:0: several passes defined: %s", strings.Join(passes, ", "))
		return
	}
	if _, ok := kernels[passes[0]]; !ok {
		s.log = fmt.Sprintf("ERROR: 0:0: '%s' : no kernel implements this pass", passes[0])
		return
	}

	depth := 0
	hasMain := false
	var inputs []gfx.ProgramInput
	for _, l := range lines {
		for _, r := range l.text {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					s.log = fmt.Sprintf("ERROR: 0:%d: '}' : syntax error", l.number)
					return
				}
			}
		}
		if strings.Contains(l.text, "void main") {
			hasMain = true
		}
		if s.stage != gfx.StageVertex || depth > 0 {
			continue
		}
		m := inputDecl.FindStringSubmatch(l.text)
		if m == nil {
			continue
		}
		t, ok := inputType[m[1]]
		if !ok {
			s.log = fmt.Sprintf("ERROR: 0:%d: '%s' : unsupported input type", l.number, m[1])
			return
		}
		inputs = append(inputs, gfx.ProgramInput{Name: m[2], Type: t, Location: len(inputs)})
	}
	if depth != 0 {
		s.log = "ERROR: 0:0: '' : unexpected end of source, missing '}'"
		return
	}
	if !hasMain {
		s.log = "ERROR: 0:0: 'main' : missing entry point"
		return
	}
	s.pass = passes[0]
	s.inputs = inputs
	s.compiled = true
	s.log = ""
}

// link pairs two compiled stages of the same pass and checks that the
// vertex stage declares every input the pass kernel reads.
func link(p *program, vs, fs *shader) {
	switch {
	case vs == nil || fs == nil:
		p.log = "ERROR: missing shader stage"
		return
	case vs.stage != gfx.StageVertex || fs.stage != gfx.StageFragment:
		p.log = "ERROR: shader stages attached in the wrong order"
		return
	case !vs.compiled || !fs.compiled:
		p.log = "ERROR: attached shader is not compiled"
		return
	case vs.pass != fs.pass:
		p.log = fmt.Sprintf("ERROR: vertex stage %s does not match fragment stage %s", vs.pass, fs.pass)
		return
	}
	k := kernels[vs.pass]
	declared := make(map[string]gfx.InputType, len(vs.inputs))
	for _, in := range vs.inputs {
		declared[in.Name] = in.Type
	}
	for _, need := range k.inputs() {
		t, ok := declared[need.name]
		if !ok {
			p.log = fmt.Sprintf("ERROR: input '%s' is read but not declared", need.name)
			return
		}
		if t != need.typ {
			p.log = fmt.Sprintf("ERROR: input '%s' declared as %s, used as %s", need.name, t, need.typ)
			return
		}
	}
	p.kernel = k
	p.inputs = append([]gfx.ProgramInput(nil), vs.inputs...)
	p.uniforms = make(map[string][]float32)
	p.linked = true
	p.log = ""
}
