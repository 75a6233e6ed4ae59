package texttemplate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
)

type person struct {
	Name string
	Age  int
}

type label struct{ Text string }

func (l label) String() string { return "label:" + l.Text }

func TestRender(t *testing.T) {
	ctx := NewContextFromAny(map[string]any{
		"name":     "world",
		"html":     `<a href="x">`,
		"list":     []string{"a", "b"},
		"nums":     []int{1, 2, 3},
		"dict":     map[string]any{"b": 2, "a": 1},
		"user":     person{Name: "Ada", Age: 36},
		"tag":      label{Text: "t"},
		"isActive": true,
		"empty":    []string{},
		"multi":    "one\ntwo",
	})
	cases := []struct {
		name string
		tpl  string
		want string
	}{
		{"plain text", "no tags {color: red} here { x", "no tags {color: red} here { x"},
		{"variable", "Hello {=name}!", "Hello world!"},
		{"default escape", "{=html}", "&lt;a href=&#34;x&#34;&gt;"},
		{"raw", "{=html|raw}", `<a href="x">`},
		{"raw anywhere in chain", "{=html|raw|singleLine}", `<a href="x">`},
		{"chain with params", "[{=name|fixedLength:7:.}]", "[world..]"},
		{"single line", "{=multi|singleLine}", "one two"},
		{"if elseif else", "{if 1==2}A{elseif 1==1}B{else}C{/if}", "B"},
		{"else branch", "{if 1==2}A{elseif 1==3}B{else}C{/if}", "C"},
		{"first match wins", "{if 1==1}A{elseif 2==2}B{/if}", "A"},
		{"bare condition", "{if isActive}on{/if}{if missing}off{/if}", "on"},
		{"string literal", `{if name == "world"}yes{/if}`, "yes"},
		{"for list", "{for item in list}{=item}-{/for}", "a-b-"},
		{"for indexes", "{for x in list}{=@index0}{=@index1}{=@key}{=x} {/for}", "010a 121b "},
		{"for dict in key order", "{for v in dict}{=@key}={=v};{/for}", "a=1;b=2;"},
		{"for over missing", "[{for x in nothing}{=x}{/for}]", "[]"},
		{"for over scalar", "[{for x in name}{=x}{/for}]", "[]"},
		{"for over empty", "[{for x in empty}{=x}{/for}]", "[]"},
		{"chain resets per iteration", "{for n in nums}{if n==1}one{elseif n==2}two{else}other{/if},{/for}", "one,two,other,"},
		{"nested loops", "{for a in list}{for b in list}{=a}{=b} {/for}{/for}", "aa ab ba bb "},
		{"loop scope", "{for name in list}{=name}{/for}{=name}", "abworld"},
		{"record field", "{=user.name} {=user.Age}", "Ada 36"},
		{"record without string form", "{=user}", "##ERR:OBJECT_IN_TEXT:[user]ON[user]:texttemplate.person###"},
		{"stringer", "{=tag}", "label:t"},
		{"list index", "{=list.1}", "b"},
		{"list string form", "{=list}", "a b"},
		{"unknown command", "a{foo bar}x{/foo}b", "a!! Invalid command: 'foo' !!b"},
		{"ordering", "{if user.age >= 18}adult{/if}{if 'b' > 'a'}!{/if}", "adult!"},
		{"strict equality", "{if 1 === 1.0}x{else}y{/if}{if 1 == 1.0}z{/if}", "yz"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Render(c.tpl, ctx, true)
			if err != nil {
				t.Fatalf("render error: %v", err)
			}
			if out != c.want {
				t.Fatalf("got %q, want %q", out, c.want)
			}
		})
	}
}

func TestRenderSoftAndStrict(t *testing.T) {
	ctx := NewContextFromAny(map[string]any{"user": map[string]any{"name": "x"}})
	out, err := Render("[{=user.email}]", ctx, true)
	if err != nil || out != "[]" {
		t.Fatalf("soft: got %q, %v", out, err)
	}
	out, err = Render("[{=user.email}]", ctx, false)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("strict: want ResolutionError, got %v", err)
	}
	if re.Segment != "email" || out != "" {
		t.Fatalf("strict: segment %q, output %q", re.Segment, out)
	}
}

func TestRenderFatalErrors(t *testing.T) {
	cases := []struct {
		name string
		tpl  string
		want any
	}{
		{"unknown filter", "{=x|nope}", new(*UndefinedFilterError)},
		{"malformed condition", "{if a ==}x{/if}", new(*MalformedExpressionError)},
		{"malformed condition in untaken branch", "{if 1==2}{if a b}x{/if}{/if}", new(*MalformedExpressionError)},
		{"elseif without condition", "{if x==2}A{elseif}B{/if}", new(*MalformedExpressionError)},
		{"blank elseif in loop", "{for i in xs}{if i}A{elseif  }B{/if}{/for}", new(*MalformedExpressionError)},
		{"unclosed", "text {if a}x", new(*UnclosedTagError)},
		{"unmatched", "x{/for}", new(*UnmatchedCloseTagError)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, soft := range []bool{true, false} {
				out, err := Render(c.tpl, Context{"x": StringValue("v")}, soft)
				if err == nil {
					t.Fatalf("soft=%v: want error, got %q", soft, out)
				}
				if out != "" {
					t.Fatalf("soft=%v: partial output %q", soft, out)
				}
				if !errors.As(err, c.want) {
					t.Fatalf("soft=%v: wrong error type %T: %v", soft, err, err)
				}
			}
		})
	}
}

func TestRenderTextThatLooksTagged(t *testing.T) {
	ctx := Context{"a": IntValue(1)}
	cases := []struct {
		tpl  string
		want string
	}{
		{"Use {item1} in text", "Use {item1} in text"},
		{"close {/abc3} literal", "close {/abc3} literal"},
		{"{if a==1}{a1}{/if}", "{a1}"},
		{"{else4} {elseif2 a} {for9 x in y}", "{else4} {elseif2 a} {for9 x in y}"},
		{"{if a==1}{b2}x{/b2}{/if}", "{b2}x{/b2}"},
	}
	for _, c := range cases {
		out, err := Render(c.tpl, ctx, false)
		if err != nil {
			t.Fatalf("Render(%q): %v", c.tpl, err)
		}
		if out != c.want {
			t.Fatalf("Render(%q) = %q, want %q", c.tpl, out, c.want)
		}
	}
}

func TestRenderFilterError(t *testing.T) {
	_, err := Render("{=x|fixedLength:abc}", Context{"x": StringValue("v")}, true)
	if err == nil || !strings.Contains(err.Error(), "fixedLength") {
		t.Fatalf("want fixedLength error, got %v", err)
	}
}

func TestContextDump(t *testing.T) {
	out, err := Render("{=__CONTEXT__}", NewContextFromAny(map[string]any{"a": 1, "b": []string{"x"}}), true)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	want := "\n----- __CONTEXT__ -----\na: 1\nb:\n    - x\n----- / __CONTEXT__ -----\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestContextDumpKeepsMappingOrder(t *testing.T) {
	inner := NewOrderedDict()
	inner.Set("zeta", IntValue(1))
	inner.Set("alpha", ListValue{StringValue("x"), NoneValue{}})
	inner.Set("mid", BoolValue(true))
	out, err := Render("{=__CONTEXT__}", Context{"cfg": inner}, true)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	want := "\n----- __CONTEXT__ -----\ncfg:\n    zeta: 1\n    alpha:\n        - x\n        - null\n    mid: true\n----- / __CONTEXT__ -----\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestTrimNewlines(t *testing.T) {
	tpl := "{for x in xs}\n- {=x}\n{/for}\ndone\n"
	ctx := NewContextFromAny(map[string]any{"xs": []string{"a", "b"}})
	out, err := New(WithTrimNewlines(true)).Render(tpl, ctx, true)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "- a\n- b\ndone\n" {
		t.Fatalf("trimmed: got %q", out)
	}
	out, err = New().Render(tpl, ctx, true)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "\n- a\n\n- b\n\ndone\n" {
		t.Fatalf("untrimmed: got %q", out)
	}
}

func TestMaxDepth(t *testing.T) {
	e := New(WithMaxDepth(2))
	if _, err := e.Render("{if 1}{if 1}x{/if}{/if}", nil, true); err != nil {
		t.Fatalf("depth 2: %v", err)
	}
	_, err := e.Render("{if 1}{if 1}{if 1}x{/if}{/if}{/if}", nil, true)
	var de *MaxDepthError
	if !errors.As(err, &de) || de.Depth != 2 {
		t.Fatalf("want MaxDepthError, got %v", err)
	}
}

func TestEngineFilters(t *testing.T) {
	e := New()
	if err := e.RegisterFilter("upper", func(v Value, _ []string) (Value, error) {
		return StringValue(strings.ToUpper(v.String())), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.RegisterFilter("bad name", func(v Value, _ []string) (Value, error) { return v, nil }); err == nil {
		t.Fatalf("want error for invalid name")
	}
	if err := e.RegisterFilter("nilfn", nil); err == nil {
		t.Fatalf("want error for nil filter")
	}
	ctx := Context{"s": StringValue("<b>")}
	out, err := e.Render("{=s|upper}", ctx, true)
	if err != nil || out != "&lt;B&gt;" {
		t.Fatalf("got %q, %v", out, err)
	}
	if err := e.SetDefaultFilter("upper"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	out, err = e.Render("{=s}", ctx, true)
	if err != nil || out != "<B>" {
		t.Fatalf("custom default: got %q, %v", out, err)
	}
	var ue *UndefinedFilterError
	if err := e.SetDefaultFilter("nope"); !errors.As(err, &ue) {
		t.Fatalf("want UndefinedFilterError, got %v", err)
	}
	if _, ok := New().Filters()["upper"]; ok {
		t.Fatalf("registry leaked between engines")
	}
}

func TestTemplateReuseConcurrent(t *testing.T) {
	tpl, err := New().Compile("{for x in xs}{if x == 2}two{else}{=x}{/if}{/for}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := NewContextFromAny(map[string]any{"xs": []int{i, 2}})
			out, err := tpl.Execute(ctx, true)
			if err != nil {
				errs <- err
				return
			}
			want := fmt.Sprintf("%dtwo", i)
			if i == 2 {
				want = "twotwo"
			}
			if out != want {
				errs <- fmt.Errorf("goroutine %d: got %q, want %q", i, out, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestRenderNamed(t *testing.T) {
	e := New()
	l := MemoryLoader{"greet": "hi {=name}"}
	out, err := e.RenderNamed(l, "greet", Context{"name": StringValue("bob")}, true)
	if err != nil || out != "hi bob" {
		t.Fatalf("got %q, %v", out, err)
	}
	if _, err := e.RenderNamed(l, "missing", nil, true); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("want ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplateString(t *testing.T) {
	if err := TemplateString("out/{=name}.txt").Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := TemplateString("{if a}").Validate(); err == nil {
		t.Fatalf("want validation error")
	}
	out, err := TemplateString("out/{=name}.txt").Render(Context{"name": StringValue("a")})
	if err != nil || out != "out/a.txt" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestRegisterAlias(t *testing.T) {
	e := New()
	if err := e.RegisterAlias("short", "singleLine|fixedLength:3"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	out, err := e.Render("{=s|short}", Context{"s": StringValue("a\n<bc")}, true)
	if err != nil || out != "a &lt;" {
		t.Fatalf("got %q, %v", out, err)
	}
	if err := e.RegisterAlias("loop", "singleLine|loop"); err == nil {
		t.Fatalf("want error for self reference")
	}
	if err := e.RegisterAlias("empty", " "); err == nil {
		t.Fatalf("want error for empty chain")
	}
	if err := e.RegisterAlias("broken", "nope"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	var ue *UndefinedFilterError
	if _, err := e.Render("{=s|broken}", Context{}, true); !errors.As(err, &ue) || ue.Name != "nope" {
		t.Fatalf("want UndefinedFilterError for nope, got %v", err)
	}
}

func TestFileLoaders(t *testing.T) {
	fsys := fstest.MapFS{"a/b.tpl": &fstest.MapFile{Data: []byte("{=x}")}}
	src, err := FSLoader{FS: fsys}.Load("a/b.tpl")
	if err != nil || src != "{=x}" {
		t.Fatalf("FSLoader: %q, %v", src, err)
	}
	if _, err := (FSLoader{FS: fsys}).Load("nope.tpl"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("FSLoader: want ErrTemplateNotFound, got %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "t.tpl"), []byte("[{=x}]"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := DirLoader{Dir: dir}
	for _, name := range []string{"t.tpl", filepath.Join(dir, "t.tpl")} {
		out, err := New().RenderNamed(l, name, Context{"x": IntValue(1)}, true)
		if err != nil || out != "[1]" {
			t.Fatalf("DirLoader %s: %q, %v", name, out, err)
		}
	}
	if _, err := l.Load("missing.tpl"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("DirLoader: want ErrTemplateNotFound, got %v", err)
	}
}
