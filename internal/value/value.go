// Package value defines the runtime Value tagged sum that every Env
// binding and Heap cell ultimately resolves to. Each primitive's
// payload may be either a concrete constant or a symbolic expression
// of the matching sort, so one representation serves both concrete
// and symbolic execution.
package value

import (
	"fmt"

	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/symexpr"
)

// Value is the runtime tag every Heap cell and Env-reachable binding
// reduces to. The tag drives every decision; there is no vtable.
type Value interface {
	valueNode()
	String() string
}

// Addr is a heap reference value.
type Addr struct{ A env.Address }

func (Addr) valueNode()        {}
func (a Addr) String() string { return fmt.Sprintf("<addr %d>", a.A) }

// Int wraps a Num-sorted symbolic expression interpreted as an integer.
type Int struct{ Sym symexpr.Num }

func (Int) valueNode()        {}
func (v Int) String() string { return v.Sym.String() }

// Float wraps a Num-sorted symbolic expression interpreted with float semantics.
type Float struct{ Sym symexpr.Num }

func (Float) valueNode()        {}
func (v Float) String() string { return v.Sym.String() }

// Bool wraps a Bool-sorted symbolic expression.
type Bool struct{ Sym symexpr.Bool }

func (Bool) valueNode()        {}
func (v Bool) String() string { return v.Sym.String() }

// String wraps a String-sorted symbolic expression.
type String struct{ Sym symexpr.Str }

func (String) valueNode()        {}
func (v String) String() string { return v.Sym.String() }

// None is Python's None singleton.
type None struct{}

func (None) valueNode()        {}
func (None) String() string { return "None" }

// NotImpl is the sentinel a reflected binary operator returns to defer
// to its mirror (__op__ then __rop__).
type NotImpl struct{ Reason string } // "" when absent

func (NotImpl) valueNode()        {}
func (v NotImpl) String() string {
	if v.Reason == "" {
		return "NotImplemented"
	}
	return "NotImplemented(" + v.Reason + ")"
}

// Undef marks a malloc'd cell that has not yet been set.
type Undef struct{}

func (Undef) valueNode()        {}
func (Undef) String() string { return "Undef" }

// Severity classifies an Error value for diagnostics filtering.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityLog     Severity = "log"
)

// Reason classifies why an Error value was produced, matching the
// propagation table: TypeMismatch, UnboundName, HeapMiss,
// ObligationViolated, ObligationUnknown, Unsupported, Cancelled.
type Reason string

const (
	ReasonTypeMismatch       Reason = "TypeMismatch"
	ReasonUnboundName        Reason = "UnboundName"
	ReasonHeapMiss           Reason = "HeapMiss"
	ReasonObligationViolated Reason = "ObligationViolated"
	ReasonObligationUnknown  Reason = "ObligationUnknown"
	ReasonUnsupported        Reason = "Unsupported"
	ReasonCancelled          Reason = "Cancelled"
	ReasonUserRaise          Reason = "UserRaise"
)

// Error is both the Python-level raised-exception value and the
// interpreter's own diagnostic record; Severity drives log-level
// filtering, Reason drives propagation per the error-handling table.
type Error struct {
	Severity Severity
	Reason   Reason
	Message  string
	Source   *symexpr.Span
}

func (Error) valueNode() {}
func (e Error) String() string {
	return fmt.Sprintf("%s(%s): %s", e.Severity, e.Reason, e.Message)
}

// IsError reports whether v is an Error of Error severity (as opposed
// to a Warning/Log record that does not halt path evaluation).
func IsError(v Value) bool {
	e, ok := v.(Error)
	return ok && e.Severity == SeverityError
}

// Object is the sole compound runtime value. Attrs/Indices/KeyValues
// encode, respectively, named attributes, positional subscripts and
// string-keyed subscripts; Shape is present only on the Size subvariant.
type Object struct {
	ID        int64
	Addr      env.Address
	Attrs     map[string]Value
	Indices   map[int64]Value
	KeyValues map[string]Value
	Shape     symexpr.Shape // nil unless this Object is a Size
}

func (Object) valueNode() {}
func (o Object) String() string {
	if o.Shape != nil {
		return fmt.Sprintf("<size %s>", o.Shape)
	}
	return fmt.Sprintf("<object #%d @%d>", o.ID, o.Addr)
}

// IsSize reports whether o is the Size subvariant (a shape reflection).
func (o Object) IsSize() bool { return o.Shape != nil }

// Clone returns a shallow copy of o's three maps, suitable as the basis
// for a fresh Object allocation (assignment of a new ID and Addr is the
// caller's responsibility, per the "clone gets a fresh id" invariant).
func (o Object) Clone() Object {
	attrs := make(map[string]Value, len(o.Attrs))
	for k, v := range o.Attrs {
		attrs[k] = v
	}
	indices := make(map[int64]Value, len(o.Indices))
	for k, v := range o.Indices {
		indices[k] = v
	}
	kv := make(map[string]Value, len(o.KeyValues))
	for k, v := range o.KeyValues {
		kv[k] = v
	}
	return Object{ID: o.ID, Addr: o.Addr, Attrs: attrs, Indices: indices, KeyValues: kv, Shape: o.Shape}
}

// Func is a closure value: a callable with captured environment.
type Func struct {
	ID           int64
	Name         string
	Params       []string
	Defaults     map[string]Value
	Body         *ir.Block
	CapturedEnv  env.Env
	HasClosure   bool
	VarargsName  string // "" when absent
	KwargsName   string // "" when absent
	KeyOnlyCount int
}

func (Func) valueNode() {}
func (f Func) String() string { return fmt.Sprintf("<function %s>", f.Name) }
