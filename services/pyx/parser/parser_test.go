// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/pyx/services/pyx/ast"
	"github.com/AleutianAI/pyx/services/pyx/lexer"
)

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return mod
}

func mustParseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	e, err := ParseExpression(src)
	if err != nil {
		t.Fatalf("parse expression %q: %v", src, err)
	}
	return e
}

func firstStmt(t *testing.T, src string) ast.Stmt {
	t.Helper()
	mod := mustParse(t, src)
	if len(mod.Body) == 0 {
		t.Fatalf("no statements in %q", src)
	}
	return mod.Body[0]
}

// =============================================================================
// Boundary behaviors
// =============================================================================

func TestParse_EmptyInput(t *testing.T) {
	mod := mustParse(t, "")
	if len(mod.Body) != 0 {
		t.Errorf("expected empty body, got %d statements", len(mod.Body))
	}
}

func TestParse_CommentOnlyLinesPreserveLineNumbers(t *testing.T) {
	mod := mustParse(t, "# first\n# second\nx = 1\n")
	if len(mod.Body) != 1 {
		t.Fatalf("expected one statement, got %d", len(mod.Body))
	}
	assign := mod.Body[0].(*ast.Assign)
	if assign.Line != 3 {
		t.Errorf("expected assignment on line 3, got %d", assign.Line)
	}
}

func TestParse_TripleQuotedStringIsOneConstant(t *testing.T) {
	stmt := firstStmt(t, "s = \"\"\"line1\nline2\"\"\"\n").(*ast.Assign)
	c, ok := stmt.Value.(*ast.Constant)
	if !ok {
		t.Fatalf("expected Constant, got %T", stmt.Value)
	}
	if c.Value != "line1\nline2" {
		t.Errorf("expected multi-line value, got %q", c.Value)
	}
}

// =============================================================================
// Concrete scenarios
// =============================================================================

func TestParseExpression_ChainedComparison(t *testing.T) {
	e := mustParseExpr(t, "a < b <= c")
	cmp, ok := e.(*ast.Compare)
	if !ok {
		t.Fatalf("expected Compare, got %T", e)
	}
	if cmp.Left.(*ast.Name).ID != "a" {
		t.Errorf("expected left a, got %v", cmp.Left)
	}
	if len(cmp.Ops) != 2 || cmp.Ops[0] != ast.Lt || cmp.Ops[1] != ast.LtE {
		t.Errorf("expected [Lt LtE], got %v", cmp.Ops)
	}
	if len(cmp.Comparators) != 2 {
		t.Fatalf("expected 2 comparators, got %d", len(cmp.Comparators))
	}
	if cmp.Comparators[0].(*ast.Name).ID != "b" || cmp.Comparators[1].(*ast.Name).ID != "c" {
		t.Errorf("unexpected comparators: %v", cmp.Comparators)
	}
}

func TestParse_RelativeImport(t *testing.T) {
	imp := firstStmt(t, "from ...pkg.sub import item\n").(*ast.ImportFrom)
	if imp.Level != 3 {
		t.Errorf("expected level 3, got %d", imp.Level)
	}
	if imp.Module == nil || *imp.Module != "pkg.sub" {
		t.Errorf("expected module pkg.sub, got %v", imp.Module)
	}
	if len(imp.Names) != 1 || imp.Names[0].Name != "item" {
		t.Errorf("expected alias item, got %+v", imp.Names)
	}
}

func TestParse_RelativeImportBareDot(t *testing.T) {
	imp := firstStmt(t, "from . import local\n").(*ast.ImportFrom)
	if imp.Level != 1 {
		t.Errorf("expected level 1, got %d", imp.Level)
	}
	if imp.Module != nil {
		t.Errorf("expected nil module, got %q", *imp.Module)
	}
}

func TestParseExpression_FStringWithFormatSpec(t *testing.T) {
	e := mustParseExpr(t, `f"{value:.2f}"`)
	js, ok := e.(*ast.JoinedStr)
	if !ok {
		t.Fatalf("expected JoinedStr, got %T", e)
	}
	if len(js.Values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(js.Values))
	}
	fv, ok := js.Values[0].(*ast.FormattedValue)
	if !ok {
		t.Fatalf("expected FormattedValue, got %T", js.Values[0])
	}
	if fv.Value.(*ast.Name).ID != "value" {
		t.Errorf("expected Name value, got %v", fv.Value)
	}
	if fv.Conversion != -1 {
		t.Errorf("expected conversion -1, got %d", fv.Conversion)
	}
	spec, ok := fv.FormatSpec.(*ast.JoinedStr)
	if !ok {
		t.Fatalf("expected JoinedStr spec, got %T", fv.FormatSpec)
	}
	if len(spec.Values) != 1 || spec.Values[0].(*ast.Constant).Value != ".2f" {
		t.Errorf("expected spec [.2f], got %+v", spec.Values)
	}
}

func TestParseExpression_WalrusInComprehension(t *testing.T) {
	e := mustParseExpr(t, "[(y := x*2) for x in items if y > 0]")
	lc, ok := e.(*ast.ListComp)
	if !ok {
		t.Fatalf("expected ListComp, got %T", e)
	}
	ne, ok := lc.Elt.(*ast.NamedExpr)
	if !ok {
		t.Fatalf("expected NamedExpr elt, got %T", lc.Elt)
	}
	if ne.Target.(*ast.Name).ID != "y" {
		t.Errorf("expected target y, got %v", ne.Target)
	}
	bin, ok := ne.Value.(*ast.BinOp)
	if !ok || bin.Op != ast.Mult {
		t.Fatalf("expected Mult BinOp value, got %#v", ne.Value)
	}
	if len(lc.Generators) != 1 {
		t.Fatalf("expected 1 generator, got %d", len(lc.Generators))
	}
	gen := lc.Generators[0]
	if len(gen.Ifs) != 1 {
		t.Fatalf("expected 1 if clause, got %d", len(gen.Ifs))
	}
	if _, ok := gen.Ifs[0].(*ast.Compare); !ok {
		t.Errorf("expected Compare guard, got %T", gen.Ifs[0])
	}
	if gen.IsAsync != 0 {
		t.Errorf("expected is_async 0, got %d", gen.IsAsync)
	}
}

// =============================================================================
// F-strings
// =============================================================================

func TestParseExpression_FStringConversions(t *testing.T) {
	cases := []struct {
		src  string
		conv int
	}{
		{`f"{x!s}"`, 115},
		{`f"{x!r}"`, 114},
		{`f"{x!a}"`, 97},
		{`f"{x}"`, -1},
	}
	for _, tc := range cases {
		e := mustParseExpr(t, tc.src)
		fv := e.(*ast.JoinedStr).Values[0].(*ast.FormattedValue)
		if fv.Conversion != tc.conv {
			t.Errorf("%s: expected conversion %d, got %d", tc.src, tc.conv, fv.Conversion)
		}
	}
}

func TestParseExpression_FStringLiteralBraces(t *testing.T) {
	e := mustParseExpr(t, `f"{{literal}} {x}"`)
	js := e.(*ast.JoinedStr)
	if len(js.Values) != 2 {
		t.Fatalf("expected 2 values, got %d: %+v", len(js.Values), js.Values)
	}
	if js.Values[0].(*ast.Constant).Value != "{literal} " {
		t.Errorf("unexpected literal chunk: %v", js.Values[0].(*ast.Constant).Value)
	}
}

func TestParseExpression_FStringMixedChunks(t *testing.T) {
	e := mustParseExpr(t, `f"pre {a} mid {b} post"`)
	js := e.(*ast.JoinedStr)
	want := []string{"Constant", "FormattedValue", "Constant", "FormattedValue", "Constant"}
	if len(js.Values) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(js.Values))
	}
	for i, k := range want {
		if js.Values[i].Kind() != k {
			t.Errorf("value %d: expected %s, got %s", i, k, js.Values[i].Kind())
		}
	}
}

func TestParseExpression_FStringNestedSpec(t *testing.T) {
	e := mustParseExpr(t, `f"{value:{width}.2f}"`)
	fv := e.(*ast.JoinedStr).Values[0].(*ast.FormattedValue)
	spec := fv.FormatSpec.(*ast.JoinedStr)
	if len(spec.Values) != 2 {
		t.Fatalf("expected nested spec with 2 parts, got %d", len(spec.Values))
	}
	if _, ok := spec.Values[0].(*ast.FormattedValue); !ok {
		t.Errorf("expected nested FormattedValue, got %T", spec.Values[0])
	}
	if spec.Values[1].(*ast.Constant).Value != ".2f" {
		t.Errorf("expected trailing .2f, got %v", spec.Values[1])
	}
}

func TestParse_AdjacentStringConcatenation(t *testing.T) {
	stmt := firstStmt(t, `s = "a" 'b'`+"\n").(*ast.Assign)
	if stmt.Value.(*ast.Constant).Value != "ab" {
		t.Errorf("expected concatenated ab, got %v", stmt.Value.(*ast.Constant).Value)
	}
}

// =============================================================================
// Statements
// =============================================================================

func TestParse_FunctionDefFullArgumentGrammar(t *testing.T) {
	src := `def f(a, b=1, *args, c, d=2, **kw) -> int:
    return a
`
	fn := firstStmt(t, src).(*ast.FunctionDef)
	if fn.Name != "f" {
		t.Errorf("expected name f, got %q", fn.Name)
	}
	args := fn.Args
	if len(args.Args) != 2 || args.Args[0].Arg != "a" || args.Args[1].Arg != "b" {
		t.Errorf("unexpected positional args: %+v", args.Args)
	}
	if len(args.Defaults) != 1 {
		t.Fatalf("expected 1 default, got %d", len(args.Defaults))
	}
	if args.Defaults[0].(*ast.Constant).Value != int64(1) {
		t.Errorf("expected default 1, got %v", args.Defaults[0])
	}
	if args.Vararg == nil || args.Vararg.Arg != "args" {
		t.Errorf("expected vararg args, got %+v", args.Vararg)
	}
	if len(args.Kwonlyargs) != 2 {
		t.Fatalf("expected 2 kwonly args, got %d", len(args.Kwonlyargs))
	}
	if len(args.KwDefaults) != 2 {
		t.Fatalf("kw_defaults must align with kwonlyargs, got %d", len(args.KwDefaults))
	}
	if args.KwDefaults[0] != nil {
		t.Errorf("required kwonly c must have nil default")
	}
	if args.KwDefaults[1].(*ast.Constant).Value != int64(2) {
		t.Errorf("expected default 2 for d, got %v", args.KwDefaults[1])
	}
	if args.Kwarg == nil || args.Kwarg.Arg != "kw" {
		t.Errorf("expected kwarg kw, got %+v", args.Kwarg)
	}
	if fn.Returns.(*ast.Name).ID != "int" {
		t.Errorf("expected return annotation int, got %v", fn.Returns)
	}
}

func TestParse_PositionalOnlyMarker(t *testing.T) {
	fn := firstStmt(t, "def f(a, /, b):\n    pass\n").(*ast.FunctionDef)
	if len(fn.Args.Posonlyargs) != 1 || fn.Args.Posonlyargs[0].Arg != "a" {
		t.Errorf("expected posonly [a], got %+v", fn.Args.Posonlyargs)
	}
	if len(fn.Args.Args) != 1 || fn.Args.Args[0].Arg != "b" {
		t.Errorf("expected args [b], got %+v", fn.Args.Args)
	}
}

func TestParse_AsyncFunctionDef(t *testing.T) {
	src := `async def fetch(url):
    return await get(url)
`
	fn := firstStmt(t, src).(*ast.AsyncFunctionDef)
	ret := fn.Body[0].(*ast.Return)
	aw, ok := ret.Value.(*ast.Await)
	if !ok {
		t.Fatalf("expected Await, got %T", ret.Value)
	}
	if _, ok := aw.Value.(*ast.Call); !ok {
		t.Errorf("expected awaited Call, got %T", aw.Value)
	}
}

func TestParse_Decorators(t *testing.T) {
	src := `@first
@second(arg)
def f():
    pass
`
	fn := firstStmt(t, src).(*ast.FunctionDef)
	if len(fn.DecoratorList) != 2 {
		t.Fatalf("expected 2 decorators, got %d", len(fn.DecoratorList))
	}
	if fn.DecoratorList[0].(*ast.Name).ID != "first" {
		t.Errorf("decorators must keep source order, got %v", fn.DecoratorList[0])
	}
	if _, ok := fn.DecoratorList[1].(*ast.Call); !ok {
		t.Errorf("expected Call decorator, got %T", fn.DecoratorList[1])
	}
}

func TestParse_ClassDef(t *testing.T) {
	src := `class User(Base, metaclass=Meta):
    name: str

    def validate(self) -> bool:
        return True
`
	cls := firstStmt(t, src).(*ast.ClassDef)
	if cls.Name != "User" {
		t.Errorf("expected name User, got %q", cls.Name)
	}
	if len(cls.Bases) != 1 || cls.Bases[0].(*ast.Name).ID != "Base" {
		t.Errorf("unexpected bases: %+v", cls.Bases)
	}
	if len(cls.Keywords) != 1 || *cls.Keywords[0].Arg != "metaclass" {
		t.Errorf("unexpected keywords: %+v", cls.Keywords)
	}
	ann := cls.Body[0].(*ast.AnnAssign)
	if ann.Simple != 1 {
		t.Errorf("expected simple annotation, got %d", ann.Simple)
	}
	if _, ok := cls.Body[1].(*ast.FunctionDef); !ok {
		t.Errorf("expected method FunctionDef, got %T", cls.Body[1])
	}
}

func TestParse_TypeParameters(t *testing.T) {
	src := `def first[T, *Ts, **P](xs: list[T]) -> T:
    return xs[0]
`
	fn := firstStmt(t, src).(*ast.FunctionDef)
	if len(fn.TypeParams) != 3 {
		t.Fatalf("expected 3 type params, got %d", len(fn.TypeParams))
	}
	if fn.TypeParams[0].Kind() != "TypeVar" ||
		fn.TypeParams[1].Kind() != "TypeVarTuple" ||
		fn.TypeParams[2].Kind() != "ParamSpec" {
		t.Errorf("unexpected type param kinds: %v %v %v",
			fn.TypeParams[0].Kind(), fn.TypeParams[1].Kind(), fn.TypeParams[2].Kind())
	}
}

func TestParse_TypeAliasStatement(t *testing.T) {
	ta := firstStmt(t, "type Vector = list[float]\n").(*ast.TypeAlias)
	if ta.Name.(*ast.Name).ID != "Vector" {
		t.Errorf("expected alias name Vector, got %v", ta.Name)
	}
	if _, ok := ta.Value.(*ast.Subscript); !ok {
		t.Errorf("expected Subscript value, got %T", ta.Value)
	}
}

func TestParse_TypeIsStillAUsableName(t *testing.T) {
	stmt := firstStmt(t, "type(x)\n").(*ast.ExprStmt)
	call, ok := stmt.Value.(*ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", stmt.Value)
	}
	if call.Func.(*ast.Name).ID != "type" {
		t.Errorf("expected call to type, got %v", call.Func)
	}
}

func TestParse_Assignments(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		assign := firstStmt(t, "a = b = 1\n").(*ast.Assign)
		if len(assign.Targets) != 2 {
			t.Fatalf("expected 2 targets, got %d", len(assign.Targets))
		}
		if assign.Value.(*ast.Constant).Value != int64(1) {
			t.Errorf("expected value 1, got %v", assign.Value)
		}
	})

	t.Run("augmented", func(t *testing.T) {
		aug := firstStmt(t, "x //= 2\n").(*ast.AugAssign)
		if aug.Op != ast.FloorDiv {
			t.Errorf("expected FloorDiv, got %s", aug.Op)
		}
	})

	t.Run("annotated", func(t *testing.T) {
		ann := firstStmt(t, "count: int = 0\n").(*ast.AnnAssign)
		if ann.Simple != 1 {
			t.Errorf("expected simple=1, got %d", ann.Simple)
		}
		if ann.Annotation.(*ast.Name).ID != "int" {
			t.Errorf("expected int annotation, got %v", ann.Annotation)
		}
		if ann.Value.(*ast.Constant).Value != int64(0) {
			t.Errorf("expected value 0, got %v", ann.Value)
		}
	})

	t.Run("annotated attribute is not simple", func(t *testing.T) {
		ann := firstStmt(t, "self.count: int = 0\n").(*ast.AnnAssign)
		if ann.Simple != 0 {
			t.Errorf("expected simple=0 for attribute target, got %d", ann.Simple)
		}
	})

	t.Run("tuple unpack with star", func(t *testing.T) {
		assign := firstStmt(t, "a, *rest = items\n").(*ast.Assign)
		tup := assign.Targets[0].(*ast.Tuple)
		if len(tup.Elts) != 2 {
			t.Fatalf("expected 2 target elements, got %d", len(tup.Elts))
		}
		if _, ok := tup.Elts[1].(*ast.Starred); !ok {
			t.Errorf("expected Starred, got %T", tup.Elts[1])
		}
	})
}

func TestParse_ElifBecomesNestedIf(t *testing.T) {
	src := `if a:
    x = 1
elif b:
    x = 2
else:
    x = 3
`
	outer := firstStmt(t, src).(*ast.If)
	if len(outer.Orelse) != 1 {
		t.Fatalf("expected single nested If in orelse, got %d", len(outer.Orelse))
	}
	inner, ok := outer.Orelse[0].(*ast.If)
	if !ok {
		t.Fatalf("expected nested If, got %T", outer.Orelse[0])
	}
	if len(inner.Orelse) != 1 {
		t.Errorf("expected else body on inner If, got %d", len(inner.Orelse))
	}
}

func TestParse_ForWithTupleTargetAndElse(t *testing.T) {
	src := `for k, v in items:
    use(k, v)
else:
    done()
`
	loop := firstStmt(t, src).(*ast.For)
	tup, ok := loop.Target.(*ast.Tuple)
	if !ok {
		t.Fatalf("expected Tuple target, got %T", loop.Target)
	}
	if len(tup.Elts) != 2 {
		t.Errorf("expected 2 target names, got %d", len(tup.Elts))
	}
	if len(loop.Orelse) != 1 {
		t.Errorf("expected else body, got %d", len(loop.Orelse))
	}
}

func TestParse_WhileElse(t *testing.T) {
	src := `while cond():
    step()
else:
    cleanup()
`
	loop := firstStmt(t, src).(*ast.While)
	if len(loop.Body) != 1 || len(loop.Orelse) != 1 {
		t.Errorf("unexpected while shape: body %d orelse %d", len(loop.Body), len(loop.Orelse))
	}
}

func TestParse_WithStatement(t *testing.T) {
	src := `with open(path) as fh, lock:
    read(fh)
`
	w := firstStmt(t, src).(*ast.With)
	if len(w.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(w.Items))
	}
	if w.Items[0].OptionalVars.(*ast.Name).ID != "fh" {
		t.Errorf("expected as-target fh, got %v", w.Items[0].OptionalVars)
	}
	if w.Items[1].OptionalVars != nil {
		t.Errorf("expected nil optional vars on second item")
	}
}

func TestParse_AsyncForAndWith(t *testing.T) {
	src := `async def main():
    async with session() as s:
        async for item in s.stream():
            handle(item)
`
	fn := firstStmt(t, src).(*ast.AsyncFunctionDef)
	aw, ok := fn.Body[0].(*ast.AsyncWith)
	if !ok {
		t.Fatalf("expected AsyncWith, got %T", fn.Body[0])
	}
	if _, ok := aw.Body[0].(*ast.AsyncFor); !ok {
		t.Errorf("expected AsyncFor, got %T", aw.Body[0])
	}
}

func TestParse_TryExceptElseFinally(t *testing.T) {
	src := `try:
    risky()
except ValueError as e:
    handle(e)
except Exception:
    fallback()
else:
    ok()
finally:
    close()
`
	try := firstStmt(t, src).(*ast.Try)
	if len(try.Handlers) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(try.Handlers))
	}
	h := try.Handlers[0]
	if h.Type.(*ast.Name).ID != "ValueError" || h.Name == nil || *h.Name != "e" {
		t.Errorf("unexpected first handler: %+v", h)
	}
	if try.Handlers[1].Name != nil {
		t.Errorf("expected no as-name on second handler")
	}
	if len(try.Orelse) != 1 || len(try.Finalbody) != 1 {
		t.Errorf("unexpected else/finally: %d/%d", len(try.Orelse), len(try.Finalbody))
	}
}

func TestParse_RaiseFrom(t *testing.T) {
	r := firstStmt(t, "raise ValueError(msg) from err\n").(*ast.Raise)
	if _, ok := r.Exc.(*ast.Call); !ok {
		t.Errorf("expected Call exc, got %T", r.Exc)
	}
	if r.Cause.(*ast.Name).ID != "err" {
		t.Errorf("expected cause err, got %v", r.Cause)
	}
}

func TestParse_SimpleStatementList(t *testing.T) {
	mod := mustParse(t, "x = 1; y = 2; pass\n")
	if len(mod.Body) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(mod.Body))
	}
	if _, ok := mod.Body[2].(*ast.Pass); !ok {
		t.Errorf("expected Pass, got %T", mod.Body[2])
	}
}

func TestParse_GlobalNonlocalDeleteAssert(t *testing.T) {
	src := `def f():
    global a, b
    nonlocal_marker = 0
    del a, b
    assert a == b, "mismatch"
`
	fn := firstStmt(t, src).(*ast.FunctionDef)
	g := fn.Body[0].(*ast.Global)
	if len(g.Names) != 2 || g.Names[0] != "a" {
		t.Errorf("unexpected global names: %v", g.Names)
	}
	d := fn.Body[2].(*ast.Delete)
	if len(d.Targets) != 2 {
		t.Errorf("expected 2 delete targets, got %d", len(d.Targets))
	}
	a := fn.Body[3].(*ast.Assert)
	if a.Msg.(*ast.Constant).Value != "mismatch" {
		t.Errorf("expected assert message, got %v", a.Msg)
	}
}

func TestParse_ImportForms(t *testing.T) {
	mod := mustParse(t, "import a.b as c, d\nfrom pkg import x as y, z\nfrom mod import *\n")

	imp := mod.Body[0].(*ast.Import)
	if len(imp.Names) != 2 {
		t.Fatalf("expected 2 aliases, got %d", len(imp.Names))
	}
	if imp.Names[0].Name != "a.b" || imp.Names[0].Asname == nil || *imp.Names[0].Asname != "c" {
		t.Errorf("unexpected first alias: %+v", imp.Names[0])
	}

	from := mod.Body[1].(*ast.ImportFrom)
	if from.Level != 0 || *from.Module != "pkg" || len(from.Names) != 2 {
		t.Errorf("unexpected from-import: %+v", from)
	}

	star := mod.Body[2].(*ast.ImportFrom)
	if len(star.Names) != 1 || star.Names[0].Name != "*" {
		t.Errorf("expected wildcard alias, got %+v", star.Names)
	}
}

func TestParse_YieldForms(t *testing.T) {
	src := `def gen():
    yield
    yield 1
    yield from other()
`
	fn := firstStmt(t, src).(*ast.FunctionDef)
	y0 := fn.Body[0].(*ast.ExprStmt).Value.(*ast.Yield)
	if y0.Value != nil {
		t.Errorf("expected bare yield, got %v", y0.Value)
	}
	y1 := fn.Body[1].(*ast.ExprStmt).Value.(*ast.Yield)
	if y1.Value.(*ast.Constant).Value != int64(1) {
		t.Errorf("expected yield 1, got %v", y1.Value)
	}
	if _, ok := fn.Body[2].(*ast.ExprStmt).Value.(*ast.YieldFrom); !ok {
		t.Errorf("expected YieldFrom, got %T", fn.Body[2].(*ast.ExprStmt).Value)
	}
}

// =============================================================================
// Match statements
// =============================================================================

func TestParse_MatchPatternKinds(t *testing.T) {
	src := `match command:
    case "quit":
        stop()
    case 404 | 410:
        gone()
    case Point(x=0, y=0):
        origin()
    case [first, *rest]:
        seq(first, rest)
    case {"key": value, **extra}:
        mapping(value, extra)
    case Color.RED:
        red()
    case (1, 2):
        pair()
    case str() as s if s:
        text(s)
    case None:
        nothing()
    case other:
        capture(other)
    case _:
        wildcard()
`
	m := firstStmt(t, src).(*ast.Match)
	if m.Subject.(*ast.Name).ID != "command" {
		t.Errorf("unexpected subject: %v", m.Subject)
	}
	if len(m.Cases) != 11 {
		t.Fatalf("expected 11 cases, got %d", len(m.Cases))
	}

	wantKinds := []string{
		"MatchValue", "MatchOr", "MatchClass", "MatchSequence", "MatchMapping",
		"MatchValue", "MatchSequence", "MatchAs", "MatchSingleton", "MatchAs", "MatchAs",
	}
	for i, k := range wantKinds {
		if m.Cases[i].Pattern.Kind() != k {
			t.Errorf("case %d: expected %s, got %s", i, k, m.Cases[i].Pattern.Kind())
		}
	}

	cls := m.Cases[2].Pattern.(*ast.MatchClass)
	if len(cls.KwdAttrs) != 2 || cls.KwdAttrs[0] != "x" {
		t.Errorf("unexpected keyword attrs: %v", cls.KwdAttrs)
	}

	seq := m.Cases[3].Pattern.(*ast.MatchSequence)
	if _, ok := seq.Patterns[1].(*ast.MatchStar); !ok {
		t.Errorf("expected MatchStar, got %T", seq.Patterns[1])
	}

	mp := m.Cases[4].Pattern.(*ast.MatchMapping)
	if mp.Rest == nil || *mp.Rest != "extra" {
		t.Errorf("expected rest capture extra, got %v", mp.Rest)
	}

	val := m.Cases[5].Pattern.(*ast.MatchValue)
	if _, ok := val.Value.(*ast.Attribute); !ok {
		t.Errorf("dotted name must be MatchValue of Attribute, got %T", val.Value)
	}

	as := m.Cases[7].Pattern.(*ast.MatchAs)
	if as.Name == nil || *as.Name != "s" || as.Pattern == nil {
		t.Errorf("unexpected as pattern: %+v", as)
	}
	if m.Cases[7].Guard == nil {
		t.Errorf("expected guard on case 7")
	}

	single := m.Cases[8].Pattern.(*ast.MatchSingleton)
	if single.Value != nil {
		t.Errorf("expected None singleton, got %v", single.Value)
	}

	capture := m.Cases[9].Pattern.(*ast.MatchAs)
	if capture.Name == nil || *capture.Name != "other" || capture.Pattern != nil {
		t.Errorf("unexpected capture: %+v", capture)
	}

	wild := m.Cases[10].Pattern.(*ast.MatchAs)
	if wild.Name != nil || wild.Pattern != nil {
		t.Errorf("wildcard must have no name and no pattern: %+v", wild)
	}
}

func TestParse_MatchAsOrdinaryName(t *testing.T) {
	assign := firstStmt(t, "match = re.match(pattern, line)\n").(*ast.Assign)
	if assign.Targets[0].(*ast.Name).ID != "match" {
		t.Errorf("match must still work as a name, got %v", assign.Targets[0])
	}
}

// =============================================================================
// Expressions
// =============================================================================

func TestParseExpression_PrecedenceLadder(t *testing.T) {
	// 1 + 2 * 3 groups the multiplication first.
	e := mustParseExpr(t, "1 + 2 * 3")
	add := e.(*ast.BinOp)
	if add.Op != ast.Add {
		t.Fatalf("expected Add at top, got %s", add.Op)
	}
	mul := add.Right.(*ast.BinOp)
	if mul.Op != ast.Mult {
		t.Errorf("expected Mult below, got %s", mul.Op)
	}
}

func TestParseExpression_PowerIsRightAssociative(t *testing.T) {
	e := mustParseExpr(t, "2 ** 3 ** 4")
	outer := e.(*ast.BinOp)
	inner, ok := outer.Right.(*ast.BinOp)
	if !ok || inner.Op != ast.Pow {
		t.Fatalf("expected right-nested Pow, got %#v", outer.Right)
	}
	if outer.Left.(*ast.Constant).Value != int64(2) {
		t.Errorf("expected left 2, got %v", outer.Left)
	}
}

func TestParseExpression_UnaryBindsTighterThanMult(t *testing.T) {
	e := mustParseExpr(t, "-a * b")
	mul := e.(*ast.BinOp)
	if mul.Op != ast.Mult {
		t.Fatalf("expected Mult at top, got %s", mul.Op)
	}
	if _, ok := mul.Left.(*ast.UnaryOp); !ok {
		t.Errorf("expected UnaryOp on left, got %T", mul.Left)
	}
}

func TestParseExpression_BoolOpChainsFlatten(t *testing.T) {
	e := mustParseExpr(t, "a or b or c")
	bo := e.(*ast.BoolOp)
	if bo.Op != ast.Or || len(bo.Values) != 3 {
		t.Errorf("expected flattened Or of 3, got %s/%d", bo.Op, len(bo.Values))
	}

	e = mustParseExpr(t, "not a and not b")
	and := e.(*ast.BoolOp)
	if and.Op != ast.And || len(and.Values) != 2 {
		t.Fatalf("expected And of 2, got %s/%d", and.Op, len(and.Values))
	}
	if _, ok := and.Values[0].(*ast.UnaryOp); !ok {
		t.Errorf("expected Not operand, got %T", and.Values[0])
	}
}

func TestParseExpression_MembershipAndIdentity(t *testing.T) {
	cases := []struct {
		src string
		op  string
	}{
		{"a in b", ast.In},
		{"a not in b", ast.NotIn},
		{"a is b", ast.Is},
		{"a is not b", ast.IsNot},
	}
	for _, tc := range cases {
		cmp := mustParseExpr(t, tc.src).(*ast.Compare)
		if cmp.Ops[0] != tc.op {
			t.Errorf("%q: expected %s, got %s", tc.src, tc.op, cmp.Ops[0])
		}
	}
}

func TestParseExpression_Ternary(t *testing.T) {
	e := mustParseExpr(t, "a if cond else b")
	ife := e.(*ast.IfExp)
	if ife.Body.(*ast.Name).ID != "a" || ife.Test.(*ast.Name).ID != "cond" ||
		ife.Orelse.(*ast.Name).ID != "b" {
		t.Errorf("unexpected ternary shape: %+v", ife)
	}
}

func TestParseExpression_Lambda(t *testing.T) {
	e := mustParseExpr(t, "lambda x, *, y=1: x + y")
	lam := e.(*ast.Lambda)
	if len(lam.Args.Args) != 1 || len(lam.Args.Kwonlyargs) != 1 {
		t.Errorf("unexpected lambda params: %+v", lam.Args)
	}
	if _, ok := lam.Body.(*ast.BinOp); !ok {
		t.Errorf("expected BinOp body, got %T", lam.Body)
	}
}

func TestParseExpression_CallForms(t *testing.T) {
	e := mustParseExpr(t, "f(x, *rest, key=1, **extra)")
	call := e.(*ast.Call)
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 positional args, got %d", len(call.Args))
	}
	if _, ok := call.Args[1].(*ast.Starred); !ok {
		t.Errorf("expected Starred arg, got %T", call.Args[1])
	}
	if len(call.Keywords) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(call.Keywords))
	}
	if call.Keywords[0].Arg == nil || *call.Keywords[0].Arg != "key" {
		t.Errorf("expected keyword key, got %+v", call.Keywords[0])
	}
	if call.Keywords[1].Arg != nil {
		t.Errorf("** spread keyword must have nil arg")
	}
}

func TestParseExpression_GeneratorArgument(t *testing.T) {
	e := mustParseExpr(t, "sum(x*x for x in xs)")
	call := e.(*ast.Call)
	if len(call.Args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.GeneratorExp); !ok {
		t.Errorf("expected GeneratorExp, got %T", call.Args[0])
	}
}

func TestParseExpression_TrailerChain(t *testing.T) {
	e := mustParseExpr(t, "obj.attr[0](arg).other")
	attr := e.(*ast.Attribute)
	if attr.Attr != "other" {
		t.Fatalf("expected outer attribute other, got %q", attr.Attr)
	}
	call := attr.Value.(*ast.Call)
	sub := call.Func.(*ast.Subscript)
	inner := sub.Value.(*ast.Attribute)
	if inner.Attr != "attr" || inner.Value.(*ast.Name).ID != "obj" {
		t.Errorf("unexpected trailer chain: %+v", inner)
	}
}

func TestParseExpression_Slices(t *testing.T) {
	sub := mustParseExpr(t, "x[1:2:3]").(*ast.Subscript)
	sl := sub.Slice.(*ast.Slice)
	if sl.Lower.(*ast.Constant).Value != int64(1) ||
		sl.Upper.(*ast.Constant).Value != int64(2) ||
		sl.Step.(*ast.Constant).Value != int64(3) {
		t.Errorf("unexpected slice: %+v", sl)
	}

	sub = mustParseExpr(t, "x[:]").(*ast.Subscript)
	sl = sub.Slice.(*ast.Slice)
	if sl.Lower != nil || sl.Upper != nil || sl.Step != nil {
		t.Errorf("expected empty slice parts, got %+v", sl)
	}

	sub = mustParseExpr(t, "Dict[str, int]").(*ast.Subscript)
	tup, ok := sub.Slice.(*ast.Tuple)
	if !ok || len(tup.Elts) != 2 {
		t.Errorf("expected tuple-valued subscript, got %#v", sub.Slice)
	}
}

func TestParseExpression_Displays(t *testing.T) {
	if e := mustParseExpr(t, "()"); len(e.(*ast.Tuple).Elts) != 0 {
		t.Errorf("expected empty tuple")
	}
	if e := mustParseExpr(t, "[]"); len(e.(*ast.List).Elts) != 0 {
		t.Errorf("expected empty list")
	}
	if e := mustParseExpr(t, "{}"); len(e.(*ast.Dict).Keys) != 0 {
		t.Errorf("expected empty dict")
	}
	if e := mustParseExpr(t, "(1,)"); len(e.(*ast.Tuple).Elts) != 1 {
		t.Errorf("expected single-element tuple")
	}
	if e := mustParseExpr(t, "(1)"); e.Kind() != "Constant" {
		t.Errorf("parenthesized expression must not become a tuple, got %s", e.Kind())
	}
	if e := mustParseExpr(t, "{1, 2}"); len(e.(*ast.Set).Elts) != 2 {
		t.Errorf("expected set of 2")
	}
}

func TestParseExpression_DictSpread(t *testing.T) {
	e := mustParseExpr(t, `{"a": 1, **extra}`)
	d := e.(*ast.Dict)
	if len(d.Keys) != 2 || len(d.Values) != 2 {
		t.Fatalf("expected aligned 2/2, got %d/%d", len(d.Keys), len(d.Values))
	}
	if d.Keys[1] != nil {
		t.Errorf("spread key must be nil")
	}
	if d.Values[1].(*ast.Name).ID != "extra" {
		t.Errorf("expected spread value extra, got %v", d.Values[1])
	}
}

func TestParseExpression_Comprehensions(t *testing.T) {
	if _, ok := mustParseExpr(t, "{x for x in xs}").(*ast.SetComp); !ok {
		t.Errorf("expected SetComp")
	}
	dc, ok := mustParseExpr(t, "{k: v for k, v in items}").(*ast.DictComp)
	if !ok {
		t.Fatalf("expected DictComp")
	}
	if _, ok := dc.Generators[0].Target.(*ast.Tuple); !ok {
		t.Errorf("expected tuple target, got %T", dc.Generators[0].Target)
	}
	ge, ok := mustParseExpr(t, "(x for x in xs if x async for y in x)").(*ast.GeneratorExp)
	if !ok {
		t.Fatalf("expected GeneratorExp")
	}
	if len(ge.Generators) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(ge.Generators))
	}
	if ge.Generators[1].IsAsync != 1 {
		t.Errorf("expected async second clause")
	}
}

func TestParseExpression_Constants(t *testing.T) {
	cases := []struct {
		src  string
		want any
	}{
		{"True", true},
		{"False", false},
		{"None", nil},
		{"42", int64(42)},
		{"0xFF", int64(255)},
		{"0o755", int64(493)},
		{"0b1010", int64(10)},
		{"1_000", int64(1000)},
		{"3.5", 3.5},
		{"1e3", 1000.0},
		{"'text'", "text"},
		{`"a\nb"`, "a\nb"},
		{`r"a\nb"`, `a\nb`},
		{"2j", ast.Imaginary{Imag: 2}},
		{"...", ast.EllipsisValue{Ellipsis: true}},
	}
	for _, tc := range cases {
		e := mustParseExpr(t, tc.src)
		c, ok := e.(*ast.Constant)
		if !ok {
			t.Errorf("%q: expected Constant, got %T", tc.src, e)
			continue
		}
		if c.Value != tc.want {
			t.Errorf("%q: expected %v (%T), got %v (%T)", tc.src, tc.want, tc.want, c.Value, c.Value)
		}
	}
}

// =============================================================================
// Structural invariants
// =============================================================================

func TestParse_WalkNameCountMatchesTokens(t *testing.T) {
	src := "total = price * quantity\n"
	mod := mustParse(t, src)

	nameNodes := ast.NodesOfKind(mod, "Name")
	if len(nameNodes) != 3 {
		t.Errorf("expected 3 Name nodes, got %d", len(nameNodes))
	}

	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	nameToks := 0
	for _, tok := range toks {
		if tok.Kind == lexer.KindName {
			nameToks++
		}
	}
	if nameToks != len(nameNodes) {
		t.Errorf("Name tokens (%d) and Name nodes (%d) diverge", nameToks, len(nameNodes))
	}
}

func TestParse_AllNodeTagsAreKnown(t *testing.T) {
	src := `import os
from . import sibling

@decorated
class C(Base):
    field: int = 0

    def method(self, *args, **kw):
        with ctx() as c:
            for i in range(10):
                if i % 2:
                    continue
                yield i

async def main():
    try:
        await main()
    except Exception as e:
        raise RuntimeError("boom") from e
    finally:
        del e

match point:
    case (x, y) if x > y:
        pass
    case _:
        pass

type Alias = dict[str, list[int]]
result = [f"{v:.2f}" for v in (lambda: values)() if v is not None]
`
	mod := mustParse(t, src)
	for n := range ast.Walk(mod) {
		if !ast.KnownKinds[n.Kind()] {
			t.Errorf("walk produced unknown tag %q", n.Kind())
		}
	}
}

// =============================================================================
// Errors and guards
// =============================================================================

func TestParse_SyntaxErrorCarriesPosition(t *testing.T) {
	_, err := Parse("if x\n    pass\n")
	if err == nil {
		t.Fatal("expected error for missing colon")
	}
	var syntaxErr *lexer.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected *lexer.SyntaxError, got %T: %v", err, err)
	}
	if !errors.Is(err, lexer.ErrUnexpectedToken) {
		t.Errorf("expected ErrUnexpectedToken, got %v", err)
	}
	if syntaxErr.Pos.Line != 1 {
		t.Errorf("expected error on line 1, got %d", syntaxErr.Pos.Line)
	}
}

func TestParse_UnterminatedStringSurfaces(t *testing.T) {
	_, err := Parse("s = 'oops\n")
	if !errors.Is(err, lexer.ErrUnterminatedString) {
		t.Fatalf("expected ErrUnterminatedString, got %v", err)
	}
}

func TestParse_IndentationErrorSurfaces(t *testing.T) {
	_, err := Parse("if x:\n        a\n    b\n")
	if !errors.Is(err, lexer.ErrInconsistentDedent) {
		t.Fatalf("expected ErrInconsistentDedent, got %v", err)
	}
}

func TestParseExpression_RejectsTrailingGarbage(t *testing.T) {
	_, err := ParseExpression("a b")
	if !errors.Is(err, lexer.ErrUnexpectedToken) {
		t.Fatalf("expected ErrUnexpectedToken, got %v", err)
	}
}

func TestParseModule_SizeGuard(t *testing.T) {
	p := New(WithMaxSourceSize(16))
	_, err := p.ParseModule(context.Background(), strings.Repeat("x = 1\n", 10))
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("expected ErrSourceTooLarge, got %v", err)
	}
}

func TestParseModule_RejectsInvalidUTF8(t *testing.T) {
	_, err := defaultParser.ParseModule(context.Background(), "x = 1\n\xff\xfe")
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestParseModule_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := defaultParser.ParseModule(ctx, "x = 1\n")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
