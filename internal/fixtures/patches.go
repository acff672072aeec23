package fixtures

import (
	"context"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/patching"
)

// FixturePatch is one hook of a fixture, identified in the catalog by ID
type FixturePatch struct {
	ID   string
	Role contracts.PatchType
	Hook interceptors.Hook
}

// Fixture is a patch class: an owner and the hooks it attaches to one original
type Fixture struct {
	Owner    string
	Original *contracts.MethodRef
	Patches  []FixturePatch
}

// Apply attaches the fixture's hooks to its original on behalf of its owner
func (f Fixture) Apply(ctx context.Context, store *patching.Store) (*patching.Descriptor, error) {
	patches := make([]interceptors.Patch, len(f.Patches))
	for i, p := range f.Patches {
		patches[i] = interceptors.Patch{Role: p.Role, Hook: p.Hook}
	}
	return store.Apply(ctx, f.Owner, f.Original, patches)
}

// Fixtures returns every patch class of the corpus
func (c *Corpus) Fixtures() []Fixture {
	rec := c.Recorder
	in, ref := interceptors.In, interceptors.Ref

	return []Fixture{
		{Owner: "Class0Patch", Original: c.Class0Method0, Patches: []FixturePatch{
			{ID: "Class0Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "Class0Patch.Postfix",
				Inputs: []interceptors.Input{ref(interceptors.ResultInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.SetResult("patched")
					return nil
				}),
			}},
		}},
		{Owner: "Class1Patch", Original: c.Class1Method1, Patches: []FixturePatch{
			{ID: "Class1Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Class1Patch.Prefix", Fn: proceed(rec, "Class1.prefixed"),
			}},
			{ID: "Class1Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Class1Patch.Postfix", Fn: mark(rec, "Class1.postfixed"),
			}},
			{ID: "Class1Patch.Transpiler", Role: contracts.Transpiler, Hook: interceptors.Hook{
				Name: "Class1Patch.Transpiler", Fn: passthrough(rec, "Class1.transpiled"),
			}},
		}},
		{Owner: "Class2Patch", Original: c.Class2Method2, Patches: []FixturePatch{
			{ID: "Class2Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Class2Patch.Prefix", Fn: proceed(rec, "Class2.prefixed"),
			}},
			{ID: "Class2Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Class2Patch.Postfix", Fn: mark(rec, "Class2.postfixed"),
			}},
			{ID: "Class2Patch.Transpiler", Role: contracts.Transpiler, Hook: interceptors.Hook{
				Name: "Class2Patch.Transpiler", Fn: passthrough(rec, "Class2.transpiled"),
			}},
		}},
		{Owner: "Class3Patch", Original: c.Class3TestMethod, Patches: []FixturePatch{
			{ID: "Class3Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Class3Patch.Prefix", Fn: mark(rec, "Class3.prefixed"),
			}},
			{ID: "Class3Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Class3Patch.Postfix", Fn: mark(rec, "Class3.postfixed"),
			}},
		}},
		{Owner: "Class4Patch", Original: c.Class4Method4, Patches: []FixturePatch{
			{ID: "Class4Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "Class4Patch.Prefix",
				Inputs: []interceptors.Input{in(interceptors.InstanceInput), in("sender")},
				Fn: interceptors.Gate(func(f *interceptors.Frame) (bool, error) {
					rec.Mark("Class4.prefixed")
					rec.Set("Class4.senderValue", f.Arg("sender"))
					rec.Set("Class4.instance", f.Instance())
					return true, nil
				}),
			}},
		}},
		{Owner: "Class5Patch", Original: c.Class5Method5, Patches: []FixturePatch{
			{ID: "Class5Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:    "Class5Patch.Prefix",
				Inputs:  []interceptors.Input{in("bar")},
				Aliases: map[string]string{"bar": "xxxyyy"},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Mark("Class5.prefixed")
					rec.Set("Class5.prefixBar", f.Arg("bar"))
					return nil
				}),
			}},
			{ID: "Class5Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:    "Class5Patch.Postfix",
				Inputs:  []interceptors.Input{in("bar")},
				Aliases: map[string]string{"bar": "xxxyyy"},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Mark("Class5.postfixed")
					rec.Set("Class5.postfixBar", f.Arg("bar"))
					return nil
				}),
			}},
		}},
		{Owner: "Class6Patch", Original: c.Class6Method6, Patches: []FixturePatch{
			{ID: "Class6Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "Class6Patch.Prefix",
				Inputs: []interceptors.Input{ref("___someFloat"), ref("___someString"), ref("___someStruct")},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.SetField("someFloat", float32(123))
					f.SetField("someString", "patched")
					f.SetField("someStruct", Class6Struct{D1: 10, D2: 20, D3: 30})
					return nil
				}),
			}},
		}},
		{Owner: "Class7Patch", Original: c.Class7Method7, Patches: []FixturePatch{
			{ID: "Class7Patch.Postfix", Role: contracts.Postfix, Hook: replaceStruct("Class7Patch.Postfix")},
		}},
		{Owner: "Class8Patch", Original: c.Class8Method8, Patches: []FixturePatch{
			{ID: "Class8Patch.Postfix", Role: contracts.Postfix, Hook: replaceStruct("Class8Patch.Postfix")},
		}},
		{Owner: "Class9Patch", Original: c.Class9ToString, Patches: []FixturePatch{
			{ID: "Class9Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "Class9Patch",
				Inputs: []interceptors.Input{in(interceptors.StateInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.SetState("from-prefix")
					return nil
				}),
			}},
			{ID: "Class9Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "Class9Patch",
				Inputs: []interceptors.Input{in(interceptors.StateInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Set("Class9.state", f.State())
					return nil
				}),
			}},
		}},
		{Owner: "Class10Patch", Original: c.Class10Method10, Patches: []FixturePatch{
			{ID: "Class10Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "Class10Patch.Postfix",
				Inputs: []interceptors.Input{in(interceptors.ResultInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Set("Class10.originalResult", f.Result())
					rec.Mark("Class10.postfixed")
					return nil
				}),
			}},
		}},
		{Owner: "Class11Patch", Original: c.Class11TestMethod, Patches: []FixturePatch{
			{ID: "Class11Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "Class11Patch.Prefix",
				Inputs: []interceptors.Input{ref(interceptors.ResultInput), in("dummy")},
				Fn: interceptors.Gate(func(f *interceptors.Frame) (bool, error) {
					f.SetResult("patched")
					rec.Mark("Class11.prefixed")
					return false, nil
				}),
			}},
		}},
		{Owner: "Class12Patch", Original: c.Class12FizzBuzz, Patches: []FixturePatch{
			{ID: "Class12Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "Class12Patch.Postfix",
				Inputs: []interceptors.Input{in("___count"), in(interceptors.ResultInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Set("Class12.count", f.Field("count"))
					rec.Set("Class12.entries", len(f.Result().([]string)))
					return nil
				}),
			}},
		}},
		{Owner: "Class13Patch", Original: c.Class13Add, Patches: []FixturePatch{
			{ID: "Class13Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "Class13Patch.Prefix",
				Inputs: []interceptors.Input{in(interceptors.OriginalInput), ref("item")},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					rec.Set("Class13.method", f.Original())
					rec.Set("Class13.result", f.Arg("item"))
					f.SetArg("item", 999)
					return nil
				}),
			}},
		}},
		{Owner: "Class14Patch", Original: c.Class14Test, Patches: []FixturePatch{
			{ID: "Class14Patch.Prefix0", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Class14Patch.Prefix0", Fn: event(rec, "Prefix0"),
			}},
			{ID: "Class14Patch.Postfix0", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Class14Patch.Postfix0", Fn: eventAction(rec, "Postfix0"),
			}},
		}},
		{Owner: "Class14Patch", Original: c.Class14TestTwoPairs, Patches: []FixturePatch{
			{ID: "Class14Patch.Prefix1", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Class14Patch.Prefix1", Fn: event(rec, "Prefix1"),
			}},
			{ID: "Class14Patch.Postfix1", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Class14Patch.Postfix1", Fn: eventAction(rec, "Postfix1"),
			}},
		}},
		{Owner: "Struct1Patch", Original: c.Struct1TestMethod, Patches: []FixturePatch{
			{ID: "Struct1Patch.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "Struct1Patch.Prefix", Fn: mark(rec, "Struct1.prefixed"),
			}},
			{ID: "Struct1Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "Struct1Patch.Postfix", Fn: mark(rec, "Struct1.postfixed"),
			}},
		}},
		{Owner: "Struct2Patch", Original: c.Struct2TestMethod, Patches: []FixturePatch{
			{ID: "Struct2Patch.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "Struct2Patch.Postfix",
				Inputs: []interceptors.Input{ref(interceptors.InstanceInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.Instance().(*Struct2).S = "patched"
					return nil
				}),
			}},
		}},
		{Owner: "AttributesPatch", Original: c.AttributesMethod, Patches: []FixturePatch{
			{ID: "AttributesPatch.Patch1", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name: "AttributesPatch.Patch1", Fn: mark(rec, "Attributes.prefixed"),
			}},
			{ID: "AttributesPatch.Patch2", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name: "AttributesPatch.Patch2", Fn: mark(rec, "Attributes.postfixed"),
			}},
		}},
		{Owner: "MultiplePatches1Patch", Original: c.MultiplePatches1TestMethod, Patches: []FixturePatch{
			{ID: "MultiplePatches1Patch.Fix1", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "MultiplePatches1Patch.Fix1",
				Inputs: []interceptors.Input{ref("val")},
				Fn:     appendArg("val", ",prefix1"),
			}},
			{ID: "MultiplePatches1Patch.Fix2", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:     "MultiplePatches1Patch.Fix2",
				Priority: contracts.High,
				Inputs:   []interceptors.Input{ref("val")},
				Fn:       appendArg("val", ",prefix2"),
			}},
			{ID: "MultiplePatches1Patch.Fix3", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "MultiplePatches1Patch.Fix3",
				Inputs: []interceptors.Input{ref(interceptors.ResultInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.SetResult(f.Result().(string) + ",postfix")
					return nil
				}),
			}},
		}},
		{Owner: "MultiplePatchesPatch2_Part1", Original: c.MultiplePatches2TestMethod, Patches: []FixturePatch{
			{ID: "MultiplePatchesPatch2_Part1.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:     "MultiplePatchesPatch2_Part1.Prefix",
				Priority: contracts.Low,
				Inputs:   []interceptors.Input{ref("val")},
				Fn:       appendArg("val", ",prefix1"),
			}},
		}},
		{Owner: "MultiplePatchesPatch2_Part2", Original: c.MultiplePatches2TestMethod, Patches: []FixturePatch{
			{ID: "MultiplePatchesPatch2_Part2.Prefix", Role: contracts.Prefix, Hook: interceptors.Hook{
				Name:   "MultiplePatchesPatch2_Part2.Prefix",
				Inputs: []interceptors.Input{ref("val")},
				Fn:     appendArg("val", ",prefix2"),
			}},
		}},
		{Owner: "MultiplePatchesPatch2_Part3", Original: c.MultiplePatches2TestMethod, Patches: []FixturePatch{
			{ID: "MultiplePatchesPatch2_Part3.Postfix", Role: contracts.Postfix, Hook: interceptors.Hook{
				Name:   "MultiplePatchesPatch2_Part3.Postfix",
				Inputs: []interceptors.Input{ref(interceptors.ResultInput)},
				Fn: interceptors.Action(func(f *interceptors.Frame) error {
					f.SetResult("patched")
					return nil
				}),
			}},
		}},
	}
}

// Fixture returns the first patch class with the given owner
func (c *Corpus) Fixture(owner string) (Fixture, bool) {
	for _, f := range c.Fixtures() {
		if f.Owner == owner {
			return f, true
		}
	}
	return Fixture{}, false
}

// Catalog returns every fixture hook keyed by its ID, for use in manifests
func (c *Corpus) Catalog() patching.Catalog {
	catalog := make(patching.Catalog)
	for _, f := range c.Fixtures() {
		for _, p := range f.Patches {
			catalog[p.ID] = p.Hook
		}
	}
	return catalog
}

func replaceStruct(name string) interceptors.Hook {
	return interceptors.Hook{
		Name:   name,
		Inputs: []interceptors.Input{interceptors.Ref(interceptors.ResultInput)},
		Fn: interceptors.Action(func(f *interceptors.Frame) error {
			f.SetResult(TestStruct{A: 10, B: 20})
			return nil
		}),
	}
}

func eventAction(rec *Recorder, name string) interceptors.Action {
	return func(*interceptors.Frame) error {
		rec.Event(name)
		return nil
	}
}
