package wrapper

import "github.com/mesh-intelligence/spyglass/pkg/match"

// OperationType is the match type name of *Operation values, a refinement
// of object. Comparing two operations compares what they recorded.
const OperationType = "operation"

func init() {
	err := match.AddType(OperationType, "object", func(v any) bool {
		op, ok := v.(*Operation)
		return ok && op != nil
	}, diffOperations)
	if err != nil {
		panic(err)
	}
}

func diffOperations(r *match.Registry, expected, actual any) match.Result {
	e, a := expected.(*Operation), actual.(*Operation)
	var out match.Result
	add := func(path string, ev, av any) {
		for _, m := range r.Diff(ev, av) {
			if m.Path == "" {
				m.Path = path
			} else if m.Path[0] == '[' {
				m.Path = path + m.Path
			} else {
				m.Path = path + "." + m.Path
			}
			out = append(out, m)
		}
	}
	add("kind", e.kind.String(), a.kind.String())
	add("args", e.args, a.args)
	add("context", e.context, a.context)
	add("setVal", e.setVal, a.setVal)
	add("returnValue", e.returnValue, a.returnValue)
	add("exception", e.exception, a.exception)
	return out
}
