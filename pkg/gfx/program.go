package gfx

import (
	"fmt"
	"strings"
)

// BuildProgram compiles a vertex and fragment shader and links them into a
// program. On failure no program object survives and the returned
// *ShaderError holds the logs of both stages plus the linker log.
func BuildProgram(dev Device, vertexSource, fragmentSource string) (Program, error) {
	if dev == nil {
		return 0, ErrNoContext
	}
	vs, err := dev.CreateShader(StageVertex, vertexSource)
	if err != nil {
		return 0, fmt.Errorf("%w: vertex shader: %v", ErrAllocation, err)
	}
	defer dev.DeleteShader(vs)

	fs, err := dev.CreateShader(StageFragment, fragmentSource)
	if err != nil {
		return 0, fmt.Errorf("%w: fragment shader: %v", ErrAllocation, err)
	}
	defer dev.DeleteShader(fs)

	vsOK, vsLog := dev.CompileShader(vs)
	fsOK, fsLog := dev.CompileShader(fs)
	if !vsOK || !fsOK {
		return 0, &ShaderError{Stage: "compile", VertexLog: vsLog, FragmentLog: fsLog}
	}

	program, err := dev.CreateProgram()
	if err != nil {
		return 0, fmt.Errorf("%w: program: %v", ErrAllocation, err)
	}
	ok, linkLog := dev.LinkProgram(program, vs, fs)
	if !ok {
		dev.DeleteProgram(program)
		return 0, &ShaderError{Stage: "link", VertexLog: vsLog, FragmentLog: fsLog, LinkLog: linkLog}
	}
	logger().Debug("program linked", "device", dev.Name(), "program", program)
	return program, nil
}

// BuildPass builds a program from a single source that selects its stage
// with the VERTEX / FRAGMENT defines and its pass with PASS_<pass>.
func BuildPass(dev Device, pass, source string) (Program, error) {
	if dev == nil {
		return 0, ErrNoContext
	}
	return BuildProgram(dev,
		StageSource(dev.ShaderHeader(), StageVertex, pass, source),
		StageSource(dev.ShaderHeader(), StageFragment, pass, source),
	)
}

// StageSource assembles the text handed to the compiler for one stage.
func StageSource(header string, stage ShaderStage, pass, source string) string {
	var sb strings.Builder
	sb.WriteString(header)
	if !strings.HasSuffix(header, "\n") {
		sb.WriteString("\n")
	}
	switch stage {
	case StageVertex:
		sb.WriteString("#define VERTEX\n")
	case StageFragment:
		sb.WriteString("#define FRAGMENT\n")
	}
	if pass != "" {
		sb.WriteString("#define PASS_" + strings.ToUpper(pass) + "\n")
	}
	sb.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}
