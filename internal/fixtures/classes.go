package fixtures

import (
	"fmt"
	"strconv"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/registry"
)

// Corpus is the set of fixture originals registered in one registry
type Corpus struct {
	Registry *registry.Registry
	Recorder *Recorder

	Class0Method0              *contracts.MethodRef
	Class1Method1              *contracts.MethodRef
	Class2Method2              *contracts.MethodRef
	Class3TestMethod           *contracts.MethodRef
	Class4Method4              *contracts.MethodRef
	Class5Method5              *contracts.MethodRef
	Class6Method6              *contracts.MethodRef
	Class7Method7              *contracts.MethodRef
	Class8Method8              *contracts.MethodRef
	Class9ToString             *contracts.MethodRef
	Class10Method10            *contracts.MethodRef
	Class11TestMethod          *contracts.MethodRef
	Class12FizzBuzz            *contracts.MethodRef
	Class13Add                 *contracts.MethodRef
	Class14Test                *contracts.MethodRef
	Class14TestTwoPairs        *contracts.MethodRef
	Struct1TestMethod          *contracts.MethodRef
	Struct2TestMethod          *contracts.MethodRef
	AttributesMethod           *contracts.MethodRef
	MultiplePatches1TestMethod *contracts.MethodRef
	MultiplePatches2TestMethod *contracts.MethodRef
}

// zero is a divisor the compiler cannot see through
var zero = 0

func param(name, typ string) contracts.Param {
	return contracts.Param{Name: name, Type: typ}
}

// NewCorpus registers every fixture original and its private fields in a
// fresh registry
func NewCorpus(rec *Recorder) (*Corpus, error) {
	if rec == nil {
		rec = NewRecorder()
	}

	c := &Corpus{Registry: registry.New(), Recorder: rec}

	types := []registry.TypeInfo{
		{Name: "Class6", Fields: map[string]contracts.Field{
			"someFloat": {
				Get: func(i any) any { return i.(*Class6).someFloat },
				Set: func(i any, v any) { i.(*Class6).someFloat = v.(float32) },
			},
			"someString": {
				Get: func(i any) any { return i.(*Class6).someString },
				Set: func(i any, v any) { i.(*Class6).someString = v.(string) },
			},
			"someStruct": {
				Get: func(i any) any { return i.(*Class6).someStruct },
				Set: func(i any, v any) { i.(*Class6).someStruct = v.(Class6Struct) },
			},
		}},
		{Name: "Class7", Fields: map[string]contracts.Field{
			"state1": {
				Get: func(i any) any { return i.(*Class7).state1 },
				Set: func(i any, v any) { i.(*Class7).state1 = v },
			},
		}},
		{Name: "Class12", Fields: map[string]contracts.Field{
			"count": {Get: func(i any) any { return i.(*Class12).count }},
		}},
	}
	for _, t := range types {
		if err := c.Registry.RegisterType(t); err != nil {
			return nil, err
		}
	}

	originals := []struct {
		target **contracts.MethodRef
		ref    contracts.MethodRef
		body   contracts.Body
	}{
		{&c.Class0Method0, contracts.MethodRef{Owner: "Class0", Name: "Method0", Returns: "string"},
			func(any, []any) (any, error) {
				return "original", nil
			}},
		{&c.Class1Method1, contracts.MethodRef{Owner: "Class1", Name: "Method1", Static: true},
			func(any, []any) (any, error) {
				rec.Mark("Class1.originalExecuted")
				return nil, nil
			}},
		{&c.Class2Method2, contracts.MethodRef{Owner: "Class2", Name: "Method2"},
			func(any, []any) (any, error) {
				rec.Mark("Class2.originalExecuted")
				return nil, nil
			}},
		{&c.Class3TestMethod, contracts.MethodRef{Owner: "Class3", Name: "TestMethod", Params: []contracts.Param{param("s", "string")}},
			class3TestMethod},
		{&c.Class4Method4, contracts.MethodRef{Owner: "Class4", Name: "Method4", Params: []contracts.Param{param("sender", "object")}},
			func(any, []any) (any, error) {
				rec.Mark("Class4.originalExecuted")
				return nil, nil
			}},
		{&c.Class5Method5, contracts.MethodRef{Owner: "Class5", Name: "Method5", Params: []contracts.Param{param("xxxyyy", "object")}},
			func(any, []any) (any, error) {
				return nil, nil
			}},
		{&c.Class6Method6, contracts.MethodRef{Owner: "Class6", Name: "Method6", Returns: "[]object"},
			func(instance any, _ []any) (any, error) {
				o := instance.(*Class6)
				return []any{o.someFloat, o.someString, o.someStruct}, nil
			}},
		{&c.Class7Method7, contracts.MethodRef{Owner: "Class7", Name: "Method7", Params: []contracts.Param{param("test", "string")}, Returns: "TestStruct"},
			func(instance any, args []any) (any, error) {
				instance.(*Class7).state1 = args[0]
				return TestStruct{A: 333, B: 666}, nil
			}},
		{&c.Class8Method8, contracts.MethodRef{Owner: "Class8", Name: "Method8", Params: []contracts.Param{param("test", "string")}, Returns: "TestStruct", Static: true},
			func(any, []any) (any, error) {
				rec.Mark("Class8.mainRun")
				return TestStruct{A: 1, B: 2}, nil
			}},
		{&c.Class9ToString, contracts.MethodRef{Owner: "Class9", Name: "ToString", Returns: "string"},
			func(any, []any) (any, error) {
				return "foobar", nil
			}},
		{&c.Class10Method10, contracts.MethodRef{Owner: "Class10", Name: "Method10", Returns: "bool"},
			func(any, []any) (any, error) {
				return true, nil
			}},
		{&c.Class11TestMethod, contracts.MethodRef{Owner: "Class11", Name: "TestMethod", Params: []contracts.Param{param("dummy", "int")}, Returns: "string"},
			func(instance any, args []any) (any, error) {
				instance.(*Class11).OriginalMethodRan = true
				return "original" + strconv.Itoa(args[0].(int)), nil
			}},
		{&c.Class12FizzBuzz, contracts.MethodRef{Owner: "Class12", Name: "FizzBuzz", Returns: "[]string"},
			class12FizzBuzz},
		{&c.Class13Add, contracts.MethodRef{Owner: "Class13<int>", Name: "Add", Params: []contracts.Param{param("item", "int")}},
			func(instance any, args []any) (any, error) {
				o := instance.(*Class13)
				o.store = append(o.store, args[0].(int))
				return nil, nil
			}},
		{&c.Class14Test, contracts.MethodRef{Owner: "Class14", Name: "Test", Params: []contracts.Param{param("s", "string"), param("p", "pair")}, Returns: "bool"},
			func(_ any, args []any) (any, error) {
				rec.Event(args[0].(string))
				return true, nil
			}},
		{&c.Class14TestTwoPairs, contracts.MethodRef{Owner: "Class14", Name: "Test", Params: []contracts.Param{param("s", "string"), param("p1", "pair"), param("p2", "pair")}, Returns: "bool"},
			func(_ any, args []any) (any, error) {
				rec.Event(args[0].(string))
				return true, nil
			}},
		{&c.Struct1TestMethod, contracts.MethodRef{Owner: "Struct1", Name: "TestMethod", Params: []contracts.Param{param("val", "string")}},
			func(instance any, args []any) (any, error) {
				s := instance.(*Struct1)
				s.S = args[0].(string)
				s.N++
				rec.Mark("Struct1.originalExecuted")
				return nil, nil
			}},
		{&c.Struct2TestMethod, contracts.MethodRef{Owner: "Struct2", Name: "TestMethod", Params: []contracts.Param{param("val", "string")}},
			func(instance any, args []any) (any, error) {
				instance.(*Struct2).S = args[0].(string)
				return nil, nil
			}},
		{&c.AttributesMethod, contracts.MethodRef{Owner: "AttributesClass", Name: "Method", Params: []contracts.Param{param("foo", "string")}},
			func(any, []any) (any, error) {
				return nil, nil
			}},
		{&c.MultiplePatches1TestMethod, contracts.MethodRef{Owner: "MultiplePatches1", Name: "TestMethod", Params: []contracts.Param{param("val", "string")}, Returns: "string"},
			func(_ any, args []any) (any, error) {
				rec.Set("MultiplePatches1.result", args[0])
				return "ok", nil
			}},
		{&c.MultiplePatches2TestMethod, contracts.MethodRef{Owner: "MultiplePatches2", Name: "TestMethod", Params: []contracts.Param{param("val", "string")}, Returns: "string"},
			func(_ any, args []any) (any, error) {
				rec.Set("MultiplePatches2.result", args[0])
				return "ok", nil
			}},
	}

	for _, o := range originals {
		ref := o.ref
		registered, err := c.Registry.RegisterMethod(&ref, o.body)
		if err != nil {
			return nil, fmt.Errorf("failed to register fixture %s: %w", ref.Key(), err)
		}
		*o.target = registered
	}

	return c, nil
}

// class3TestMethod recovers its own division fault, so the log shows the
// catch and finally paths and never the fall-through
func class3TestMethod(instance any, args []any) (any, error) {
	c := instance.(*Class3)
	c.log = args[0].(string)

	completed := false
	func() {
		defer func() { c.log += ",finally" }()
		defer func() {
			if r := recover(); r != nil {
				c.log += fmt.Sprintf(",ex:%v", r)
			}
		}()

		c.log += ",test"
		n := 1 / zero
		if n == 0 {
			c.log += ",zero"
		} else {
			c.log += ",!zero"
		}
		completed = true
	}()

	if completed {
		c.log += ",fail"
		return nil, nil
	}
	c.log += ",end"
	return nil, nil
}

func class12FizzBuzz(instance any, _ []any) (any, error) {
	c := instance.(*Class12)
	out := make([]string, 0, c.count)
	for i := 1; i <= c.count; i++ {
		switch {
		case i%15 == 0:
			out = append(out, "FizzBuzz")
		case i%3 == 0:
			out = append(out, "Fizz")
		case i%5 == 0:
			out = append(out, "Buzz")
		default:
			out = append(out, strconv.Itoa(i))
		}
	}
	return out, nil
}

// mark returns an Action that flags name
func mark(rec *Recorder, name string) interceptors.Action {
	return func(*interceptors.Frame) error {
		rec.Mark(name)
		return nil
	}
}

// proceed returns a Gate that flags name and lets the call continue
func proceed(rec *Recorder, name string) interceptors.Gate {
	return func(*interceptors.Frame) (bool, error) {
		rec.Mark(name)
		return true, nil
	}
}

// event returns a Gate that logs name and lets the call continue
func event(rec *Recorder, name string) interceptors.Gate {
	return func(*interceptors.Frame) (bool, error) {
		rec.Event(name)
		return true, nil
	}
}

func appendArg(name, suffix string) interceptors.Action {
	return func(f *interceptors.Frame) error {
		f.SetArg(name, f.Arg(name).(string)+suffix)
		return nil
	}
}

func passthrough(rec *Recorder, name string) interceptors.Transpiler {
	return func(next contracts.Body) contracts.Body {
		rec.Mark(name)
		return next
	}
}
