package parse

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/sqlitegraph"
	"github.com/roach88/hopscotch/internal/step"
)

//go:embed schema.cue
var schemaSource string

// LoadError represents a plan loading error with the CUE path and
// source position that failed.
type LoadError struct {
	Path    string // CUE path of the failing element, e.g. plan.steps.2
	Message string
	Pos     token.Pos

	err error
}

func (e *LoadError) Error() string {
	path := e.Path
	if path == "" {
		path = "plan"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), path, e.Message)
	}
	return fmt.Sprintf("%s: %s", path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.err }

// LoadPlan reads and parses a plan CUE file into an unoptimized
// traversal.
func LoadPlan(path string) (*pipeline.Traversal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data, path)
}

// ParsePlan parses plan CUE source from memory. The filename only labels
// error positions.
//
// The document is unified against the embedded schema and must be fully
// concrete; the traversal is then built bottom-up, children first. The
// result is unoptimized and unlocked.
func ParsePlan(data []byte, filename string) (*pipeline.Traversal, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile plan schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, cueError(err)
	}

	planVal := doc.Unify(schema).LookupPath(cue.ParsePath("plan"))
	if err := planVal.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	return buildPlan(planVal)
}

// buildPlan turns a validated plan value into a traversal.
func buildPlan(v cue.Value) (*pipeline.Traversal, error) {
	modeStr, err := v.LookupPath(cue.ParsePath("mode")).String()
	if err != nil {
		return nil, cueError(err)
	}
	mode := pipeline.ModeStandard
	if modeStr == "computer" {
		mode = pipeline.ModeComputer
	}

	t := pipeline.New(mode)
	if err := addSteps(t, v.LookupPath(cue.ParsePath("steps"))); err != nil {
		return nil, err
	}
	return t, nil
}

// addSteps builds each element of a steps list and appends it to t.
func addSteps(t *pipeline.Traversal, v cue.Value) error {
	iter, err := v.List()
	if err != nil {
		return cueError(err)
	}
	for iter.Next() {
		s, err := buildStep(iter.Value())
		if err != nil {
			return err
		}
		if err := t.AddStep(s); err != nil {
			return loadErrorAt(iter.Value(), err.Error(), err)
		}
	}
	return nil
}

// buildStep constructs one step from its plan element, children first.
func buildStep(v cue.Value) (pipeline.Step, error) {
	name, err := v.LookupPath(cue.ParsePath("step")).String()
	if err != nil {
		return nil, cueError(err)
	}

	var s pipeline.Step
	switch name {
	case "identity":
		s = step.NewIdentityStep()

	case "inject":
		values, err := scalarList(v, "values")
		if err != nil {
			return nil, err
		}
		s = step.NewInjectStep(values...)

	case "scan":
		label, err := optionalString(v, "label")
		if err != nil {
			return nil, err
		}
		s = sqlitegraph.NewScanStep(label)

	case "out":
		label, err := optionalString(v, "label")
		if err != nil {
			return nil, err
		}
		s = sqlitegraph.NewOutStep(label)

	case "values":
		key, err := requiredString(v, "key")
		if err != nil {
			return nil, err
		}
		s = sqlitegraph.NewValuesStep(key)

	case "dedup":
		s = step.NewDedupStep()

	case "count":
		s = step.NewCountStep()

	case "store":
		key, err := requiredString(v, "key")
		if err != nil {
			return nil, err
		}
		st, err := step.NewStoreStep(key)
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	case "and":
		children, err := childTraversals(v)
		if err != nil {
			return nil, err
		}
		st, err := step.NewAndStep(children...)
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	case "or":
		children, err := childTraversals(v)
		if err != nil {
			return nil, err
		}
		st, err := step.NewOrStep(children...)
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	case "not":
		children, err := childTraversals(v)
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, loadErrorAt(v, "not takes exactly one child", nil)
		}
		st, err := step.NewNotStep(children[0])
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	case "union":
		children, err := childTraversals(v)
		if err != nil {
			return nil, err
		}
		st, err := step.NewUnionStep(children...)
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	case "where":
		children, err := childTraversals(v)
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, loadErrorAt(v, "where takes exactly one child", nil)
		}
		st, err := step.NewWhereStep(pipeline.ScopeGlobal, children[0])
		if err != nil {
			return nil, loadErrorAt(v, err.Error(), err)
		}
		s = st

	default:
		return nil, loadErrorAt(v, fmt.Sprintf("unknown step %q", name), nil)
	}

	if err := applyLabels(s, v); err != nil {
		return nil, err
	}
	return s, nil
}

// childTraversals builds the nested step lists under "children".
func childTraversals(v cue.Value) ([]*pipeline.Traversal, error) {
	fv := v.LookupPath(cue.ParsePath("children"))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, cueError(err)
	}
	var children []*pipeline.Traversal
	for iter.Next() {
		child := pipeline.New(pipeline.ModeStandard)
		if err := addSteps(child, iter.Value()); err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// applyLabels attaches the "as" labels to a built step.
func applyLabels(s pipeline.Step, v cue.Value) error {
	fv := v.LookupPath(cue.ParsePath("as"))
	if !fv.Exists() {
		return nil
	}
	iter, err := fv.List()
	if err != nil {
		return cueError(err)
	}
	for iter.Next() {
		label, err := iter.Value().String()
		if err != nil {
			return cueError(err)
		}
		if err := s.AddLabel(label); err != nil {
			return loadErrorAt(iter.Value(), err.Error(), err)
		}
	}
	return nil
}

// scalarList decodes a list of plan literals.
func scalarList(v cue.Value, field string) ([]any, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, cueError(err)
	}
	var values []any
	for iter.Next() {
		value, err := scalarValue(iter.Value())
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// scalarValue decodes one plan literal by its concrete kind.
func scalarValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	default:
		return nil, loadErrorAt(v, fmt.Sprintf("unsupported literal kind %v", v.Kind()), nil)
	}
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", cueError(err)
	}
	return s, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", loadErrorAt(v, field+" is required", nil)
	}
	s, err := fv.String()
	if err != nil {
		return "", cueError(err)
	}
	return s, nil
}

// loadErrorAt wraps a failure with the CUE path and position of the
// element being built.
func loadErrorAt(v cue.Value, message string, cause error) *LoadError {
	return &LoadError{
		Path:    v.Path().String(),
		Message: message,
		Pos:     v.Pos(),
		err:     cause,
	}
}

// cueError extracts path and position info from CUE errors.
func cueError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	le := &LoadError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
		err:     err,
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
