package cipher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"

	"github.com/ytget/ytsig/internal/jsmini"
)

// inputBinding is the global that carries the argument into a routine run.
const inputBinding = "ytsigInput"

// defaultEngineTimeout bounds otto and goja runs.
const defaultEngineTimeout = 5 * time.Second

// Engine names accepted by NewEvaluator.
const (
	EngineBuiltin = "builtin"
	EngineOtto    = "otto"
	EngineGoja    = "goja"
)

// Evaluator runs an extracted routine over a single string argument.
// Implementations must be safe for concurrent use and must not let the
// routine reach host state.
type Evaluator interface {
	Evaluate(r *Routine, arg string) (string, error)
}

// NewEvaluator returns the evaluator for engine. An empty name selects the
// built-in interpreter.
func NewEvaluator(engine string) (Evaluator, error) {
	switch strings.ToLower(engine) {
	case "", EngineBuiltin:
		return MiniEvaluator{}, nil
	case EngineOtto:
		return OttoEvaluator{}, nil
	case EngineGoja:
		return GojaEvaluator{}, nil
	}
	return nil, fmt.Errorf("unknown engine %q", engine)
}

func program(r *Routine) string {
	return r.Source() + r.Name + "(" + inputBinding + ");"
}

func evaluationFailed(r *Routine, msg string, cause error) error {
	return WrapError(ErrCodeEvaluationFailed, msg, cause, r.Name)
}

// MiniEvaluator runs routines on the built-in interpreter. It understands
// only the subset of JavaScript cipher routines are written in.
type MiniEvaluator struct {
	MaxSteps int
}

// Evaluate implements Evaluator.
func (e MiniEvaluator) Evaluate(r *Routine, arg string) (string, error) {
	if r == nil {
		return "", NewError(ErrCodeEvaluationFailed, "nil routine")
	}
	in := jsmini.New(jsmini.WithMaxSteps(e.MaxSteps))
	v, err := in.Run(program(r), map[string]jsmini.Value{inputBinding: arg})
	if err != nil {
		return "", evaluationFailed(r, "builtin interpreter", err)
	}
	s, ok := v.(string)
	if !ok {
		return "", evaluationFailed(r, fmt.Sprintf("routine returned %s, not a string", jsmini.ToString(v)), nil)
	}
	return s, nil
}

var errOttoHalt = errors.New("otto run timed out")

// OttoEvaluator runs routines in a fresh otto VM per call.
type OttoEvaluator struct {
	Timeout time.Duration
}

// Evaluate implements Evaluator.
func (e OttoEvaluator) Evaluate(r *Routine, arg string) (out string, err error) {
	if r == nil {
		return "", NewError(ErrCodeEvaluationFailed, "nil routine")
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultEngineTimeout
	}

	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt <- func() { panic(errOttoHalt) }
	})
	defer timer.Stop()
	defer func() {
		if caught := recover(); caught != nil {
			if caught != errOttoHalt {
				panic(caught)
			}
			out, err = "", evaluationFailed(r, "otto", errOttoHalt)
		}
	}()

	if err := vm.Set(inputBinding, arg); err != nil {
		return "", evaluationFailed(r, "otto bind argument", err)
	}
	value, err := vm.Run(program(r))
	if err != nil {
		return "", evaluationFailed(r, "otto", err)
	}
	if !value.IsString() {
		return "", evaluationFailed(r, "routine returned "+value.Class()+", not a string", nil)
	}
	s, err := value.ToString()
	if err != nil {
		return "", evaluationFailed(r, "otto result", err)
	}
	return s, nil
}

// GojaEvaluator runs routines in a fresh goja runtime per call.
type GojaEvaluator struct {
	Timeout time.Duration
}

// Evaluate implements Evaluator.
func (e GojaEvaluator) Evaluate(r *Routine, arg string) (string, error) {
	if r == nil {
		return "", NewError(ErrCodeEvaluationFailed, "nil routine")
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultEngineTimeout
	}

	vm := goja.New()
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("timeout")
	})
	defer timer.Stop()

	if err := vm.Set(inputBinding, arg); err != nil {
		return "", evaluationFailed(r, "goja bind argument", err)
	}
	value, err := vm.RunString(program(r))
	if err != nil {
		return "", evaluationFailed(r, "goja", err)
	}
	if goja.IsUndefined(value) || goja.IsNull(value) {
		return "", evaluationFailed(r, "routine returned nothing", nil)
	}
	s, ok := value.Export().(string)
	if !ok {
		return "", evaluationFailed(r, "routine returned "+value.String()+", not a string", nil)
	}
	return s, nil
}
