package vm_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/errors"
	"github.com/wudi/ember/module"
	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
	"github.com/wudi/ember/vm"
)

// newTestVM returns a VM with a `print` native that appends each line
// to the returned slice instead of writing to stdout.
func newTestVM() (*vm.VM, *[]string) {
	v := vm.New()
	var lines []string
	v.RegisterFunc("print", func(args []*values.Value) (*values.Value, error) {
		out := ""
		for i, a := range args {
			if i > 0 {
				out += " "
			}
			out += a.String()
		}
		lines = append(lines, out)
		return nil, nil
	})
	return v, &lines
}

func TestEvalArithmetic(t *testing.T) {
	v, _ := newTestVM()
	val, err := v.Eval(`((10 + 5) * 2) - (3 + 7)`)
	require.NoError(t, err)
	require.True(t, val.IsNumber())
	require.EqualValues(t, 20, val.AsNumber())
	require.Equal(t, 0, v.StackDepth())
}

func TestForLoopWithBreak(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`for (i = 0; i < 10; i = i + 1) { if (i == 4) break; print(i) }`)
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1", "2", "3"}, *lines)
	require.Equal(t, 0, v.StackDepth())
}

func TestForLoopWithContinue(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`for (i = 0; i < 5; i = i + 1) { if (i % 2 == 0) continue; print(i) }`)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3"}, *lines)
}

func TestWhileLoop(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`n = 0  while (n < 7) { n = n + 1 }`)
	require.NoError(t, err)
	got := v.Globals()["n"]
	require.EqualValues(t, 7, got.AsNumber())
	require.Equal(t, 0, v.StackDepth())
}

func TestTryCatchFinally(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`try { throw "boom" } catch (e) { print(e) } finally { print("done") }`)
	require.NoError(t, err)
	require.Equal(t, []string{"boom", "done"}, *lines)
	require.Equal(t, 0, v.StackDepth())
}

func TestFinallyRunsWithoutCatch(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`try { throw "oops" } finally { print("cleanup") }`)
	require.Error(t, err)
	require.Equal(t, []string{"cleanup"}, *lines)
}

func TestThrowInsideCatchStillRunsFinally(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`try { throw "first" } catch (e) { throw "second" } finally { print("fin") }`)
	require.Error(t, err)
	require.Equal(t, []string{"fin"}, *lines)
}

func TestUncaughtThrowParksPendingException(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`throw "unhandled"`)
	require.Error(t, err)
	exc := v.PendingException()
	require.NotNil(t, exc)
	require.Equal(t, 0, v.StackDepth())

	// A subsequent successful run clears the slot.
	_, err = v.Eval(`1 + 1`)
	require.NoError(t, err)
	require.Nil(t, v.PendingException())
}

func TestNestedTryRethrowReachesOuterHandler(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`
		try {
			try { throw "inner" } catch (e) { throw e }
		} catch (e2) { print(e2) }
	`)
	require.NoError(t, err)
	require.Equal(t, []string{"inner"}, *lines)
}

func TestFunctionCallAndReturn(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`function add(a, b) { return a + b }`)
	require.NoError(t, err)

	result, err := v.Call("add", values.Number(2), values.Number(3))
	require.NoError(t, err)
	require.EqualValues(t, 5, result.AsNumber())
	require.Equal(t, 0, v.StackDepth())
}

func TestCallUnknownFunction(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Call("nope")
	require.Error(t, err)
}

func TestRecursionDepthSurfacesMemoryError(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`function r() { return r() }  r()`)
	require.Error(t, err)
	require.Equal(t, errors.StatusMemoryError, vm.StatusOf(err))
}

func TestClassInheritanceAndSuper(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		class Animal {
			name() { return "animal" }
			speak() { return "..." }
		}
		class Dog extends Animal {
			speak() { return "woof" }
			describe() { return this.name() + " says " + this.speak() }
		}
		class Puppy extends Dog {
			speak() { return "yip, " + super.speak() }
		}
		d = new Dog()
		p = new Puppy()
		described = d.describe()
		yipped = p.speak()
	`)
	require.NoError(t, err)
	require.Equal(t, "animal says woof", v.Globals()["described"].AsString())
	require.Equal(t, "yip, woof", v.Globals()["yipped"].AsString())
	require.Equal(t, 0, v.StackDepth())
}

func TestInstanceFieldsAndConstructor(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		class Point {
			__construct(x, y) {
				this.x = x
				this.y = y
			}
			sum() { return this.x + this.y }
		}
		pt = new Point(3, 4)
		total = pt.sum()
	`)
	require.NoError(t, err)
	require.EqualValues(t, 7, v.Globals()["total"].AsNumber())
}

func TestSwitchSelectsCaseAndDefault(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		x = 2
		switch (x) {
			case 1: result = "one"
			case 2: result = "two"
			default: result = "other"
		}
		y = 9
		switch (y) {
			case 1: other = "one"
			default: other = "fallthrough"
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "two", v.Globals()["result"].AsString())
	require.Equal(t, "fallthrough", v.Globals()["other"].AsString())
	require.Equal(t, 0, v.StackDepth())
}

func TestStringInterpolation(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		name = "world"
		n = 3
		greeting = "hello ${name}, ${n + 1} times"
	`)
	require.NoError(t, err)
	require.Equal(t, "hello world, 4 times", v.Globals()["greeting"].AsString())
}

func TestInterpolationSeesParameters(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		name = "global"
		function greet(name, n) { return "hi ${name} x${n + 1}" }
		out = greet("bob", 2)
	`)
	require.NoError(t, err)
	require.Equal(t, "hi bob x3", v.Globals()["out"].AsString(),
		"${name} must resolve the parameter, not the global")
	require.Equal(t, 0, v.StackDepth())
}

func TestLogicalOperatorsShortCircuit(t *testing.T) {
	v, lines := newTestVM()
	_, err := v.Eval(`
		function sideEffect() { print("called"); return true }
		a = false and sideEffect()
		b = true or sideEffect()
	`)
	require.NoError(t, err)
	require.Empty(t, *lines)
	require.False(t, v.Globals()["a"].Truthy())
	require.True(t, v.Globals()["b"].Truthy())
}

func TestArraysAndMaps(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		xs = [10, 20, 30]
		first = xs[0]
		xs[1] = 21
		second = xs[1]
		m = {"a": 1, "b": 2}
		got = m["b"]
	`)
	require.NoError(t, err)
	require.EqualValues(t, 10, v.Globals()["first"].AsNumber())
	require.EqualValues(t, 21, v.Globals()["second"].AsNumber())
	require.EqualValues(t, 2, v.Globals()["got"].AsNumber())
	require.Equal(t, 0, v.StackDepth())
}

func TestArrayIndexOutOfRangeIsCatchable(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		xs = [1]
		try { y = xs[5] } catch (e) { caught = "yes" }
	`)
	require.NoError(t, err)
	require.Equal(t, "yes", v.Globals()["caught"].AsString())
}

func TestGeneratorCollectsYields(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		function gen() { yield 1  yield 2  yield 3 }
		nums = gen()
	`)
	require.NoError(t, err)
	nums := v.Globals()["nums"]
	require.Equal(t, values.TypeArray, nums.Type)
	arr := nums.Data.(*values.Array)
	require.Equal(t, 3, arr.Len())
	el, _ := arr.Get(2)
	require.EqualValues(t, 3, el.AsNumber())
}

func TestAwaitResolvedPromise(t *testing.T) {
	v, _ := newTestVM()
	v.RegisterFunc("settled", func(args []*values.Value) (*values.Value, error) {
		p := values.NewPromise()
		p.Data.(*values.Promise).Resolve(values.Number(42))
		return p, nil
	})
	_, err := v.Eval(`
		async function f() { return await settled() }
		r = f()
	`)
	require.NoError(t, err)
	require.EqualValues(t, 42, v.Globals()["r"].AsNumber())
}

func TestAwaitRejectedPromiseThrows(t *testing.T) {
	v, _ := newTestVM()
	v.RegisterFunc("doomed", func(args []*values.Value) (*values.Value, error) {
		p := values.NewPromise()
		p.Data.(*values.Promise).Reject(values.Str("bad"))
		return p, nil
	})
	_, err := v.Eval(`
		async function g() { return await doomed() }
		try { g() } catch (e) { caught = e }
	`)
	require.NoError(t, err)
	require.Equal(t, "bad", v.Globals()["caught"].AsString())
}

func TestAwaitNonPromisePassesThrough(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		async function h() { return await 5 }
		r = h()
	`)
	require.NoError(t, err)
	require.EqualValues(t, 5, v.Globals()["r"].AsNumber())
}

func TestNativeErrorBecomesException(t *testing.T) {
	v, _ := newTestVM()
	v.RegisterFunc("fail", func(args []*values.Value) (*values.Value, error) {
		return nil, assert.AnError
	})
	_, err := v.Eval(`try { fail() } catch (e) { handled = true }`)
	require.NoError(t, err)
	require.True(t, v.Globals()["handled"].Truthy())
}

func TestRegexMethodInvocation(t *testing.T) {
	v, _ := newTestVM()
	v.RegisterFunc("regex", func(args []*values.Value) (*values.Value, error) {
		flags := ""
		if len(args) == 2 {
			flags = args[1].AsString()
		}
		return vm.CompileRegex(args[0].AsString(), flags)
	})
	_, err := v.Eval(`
		r = regex("(a+)b", "")
		ok = r.test("xaab")
		no = r.test("xyz")
		m = r.match("xaab")
		parts = regex(",", "").split("1,2,3")
		swapped = regex("a", "g").replace("banana", "o")
		once = regex("a", "").replace("banana", "o")
	`)
	require.NoError(t, err)
	g := v.Globals()
	require.True(t, g["ok"].AsBool())
	require.False(t, g["no"].AsBool())

	m := g["m"].Data.(*values.Array)
	require.Equal(t, 2, m.Len())
	full, _ := m.Get(0)
	group, _ := m.Get(1)
	require.Equal(t, "aab", full.AsString())
	require.Equal(t, "aa", group.AsString())

	parts := g["parts"].Data.(*values.Array)
	require.Equal(t, 3, parts.Len())
	require.Equal(t, "bonono", g["swapped"].AsString())
	require.Equal(t, "bonana", g["once"].AsString())
	require.Equal(t, 0, v.StackDepth())
}

// emit writes a raw instruction stream into a chunk the way the
// compiler would, for opcode-level tests.
func emit(c *compiler.Chunk, bytes ...byte) {
	for _, b := range bytes {
		c.Write(b, 1)
	}
}

func TestRegexOpcodes(t *testing.T) {
	v, _ := newTestVM()

	chunk := compiler.NewChunk("<regex>")
	pat := chunk.AddConstant(values.Str("a+b"))
	flags := chunk.AddConstant(values.Str("i"))
	subj := chunk.AddConstant(values.Str("xAAB"))
	emit(chunk,
		byte(opcodes.OP_PUSH_CONST), byte(pat),
		byte(opcodes.OP_PUSH_CONST), byte(flags),
		byte(opcodes.OP_REGEX_NEW),
		byte(opcodes.OP_PUSH_CONST), byte(subj),
		byte(opcodes.OP_REGEX_TEST),
		byte(opcodes.OP_HALT),
	)

	val, err := v.Run(chunk)
	require.NoError(t, err)
	require.True(t, val.AsBool())
}

func TestRegexNewWithBadPatternIsCatchable(t *testing.T) {
	v, _ := newTestVM()
	v.RegisterFunc("regex", func(args []*values.Value) (*values.Value, error) {
		return vm.CompileRegex(args[0].AsString(), "")
	})
	_, err := v.Eval(`try { r = regex("(") } catch (e) { bad = true }`)
	require.NoError(t, err)
	require.True(t, v.Globals()["bad"].Truthy())
}

func TestImportWithoutImporterFails(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`import "anything"`)
	require.Error(t, err)
}

func TestImportBindsNamedExports(t *testing.T) {
	dir := t.TempDir()
	src := `
export fn double(x) { return x * 2 }
export answer = 42
export default "main"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.ember"), []byte(src), 0o644))

	v, _ := newTestVM()
	loader := module.New(v)
	v.Importer = loader
	require.NoError(t, loader.AddSearchPath(dir))

	_, err := v.Eval(`
		import { double, answer } from "util"
		y = double(4)
	`)
	require.NoError(t, err)
	require.EqualValues(t, 8, v.Globals()["y"].AsNumber())
	require.EqualValues(t, 42, v.Globals()["answer"].AsNumber())

	_, err = v.Eval(`
		import * as u from "util"
		ns = u.answer
		import main from "util"
	`)
	require.NoError(t, err)
	require.EqualValues(t, 42, v.Globals()["ns"].AsNumber())
	require.Equal(t, "main", v.Globals()["main"].AsString())
	require.Equal(t, 0, v.StackDepth())
}

func TestGCCollectKeepsReachableObjects(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`
		keep = [1, 2, 3]
		for (i = 0; i < 50; i = i + 1) { tmp = [i] }
	`)
	require.NoError(t, err)

	stats := v.GC().Collect(v)
	require.Greater(t, stats.Live, int64(0))

	keep := v.Globals()["keep"].Data.(*values.Array)
	require.Equal(t, 3, keep.Len())
}

func TestEvalCompileErrorReturnsList(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`if (`)
	require.Error(t, err)
	require.Equal(t, errors.StatusCompileError, vm.StatusOf(err))
}

func TestFreeResetsState(t *testing.T) {
	v, _ := newTestVM()
	_, err := v.Eval(`x = 1`)
	require.NoError(t, err)
	v.Free()
	require.Empty(t, v.Globals())
}
