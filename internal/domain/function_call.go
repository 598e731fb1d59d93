package domain

import (
	"fmt"
	"strings"
)

type FunctionName string

const (
	FuncOpenApplication  FunctionName = "openApplication"
	FuncGenerateImage    FunctionName = "generateImage"
	FuncSolveComplexTask FunctionName = "solveComplexTask"
)

// FunctionCallIntent is a structured action requested by the backend. It is
// only valid during the response pass that produced it.
type FunctionCallIntent struct {
	Name FunctionName
	Args map[string]any
}

// StringArg returns a trimmed string argument, formatting non-string values.
func (f FunctionCallIntent) StringArg(name string) string {
	v, ok := f.Args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
