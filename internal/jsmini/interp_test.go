package jsmini

import (
	"errors"
	"testing"
)

func run(t *testing.T, src string, bindings map[string]Value) Value {
	t.Helper()
	v, err := New().Run(src, bindings)
	if err != nil {
		t.Fatalf("Run(%q) error = %v", src, err)
	}
	return v
}

func TestRunExpressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "arithmetic", src: `1+2*3-4/2`, want: "5"},
		{name: "modulo", src: `17%5`, want: "2"},
		{name: "string concat", src: `"a"+1+2`, want: "a12"},
		{name: "number first", src: `1+2+"a"`, want: "3a"},
		{name: "bitwise", src: `(5&3)|(8^2)`, want: "11"},
		{name: "shifts", src: `[1<<4, -16>>2, -1>>>28].join(",")`, want: "16,-4,15"},
		{name: "ternary", src: `var x=3; x>2?"big":"small"`, want: "big"},
		{name: "logical", src: `null||"d"`, want: "d"},
		{name: "and short circuit", src: `0&&undefinedThing`, want: "0"},
		{name: "typeof undeclared", src: `typeof nothing`, want: "undefined"},
		{name: "typeof function", src: `typeof function(){}`, want: "function"},
		{name: "strict equality", src: `[1==="1", 1=="1", null==undefined, null===undefined].join()`, want: "false,true,true,false"},
		{name: "sequence", src: `var a=(1,2,3); a`, want: "3"},
		{name: "compound assignment", src: `var a=10; a+=5; a*=2; a-=1; a`, want: "29"},
		{name: "update", src: `var i=1; var j=i++; var k=++i; [i,j,k].join("-")`, want: "3-1-3"},
		{name: "hex literal", src: `0x1f`, want: "31"},
		{name: "fromCharCode", src: `String.fromCharCode(72,105)`, want: "Hi"},
		{name: "math", src: `[Math.floor(2.7), Math.abs(-3), Math.min(4,2,9), Math.max(4,2,9)].join(",")`, want: "2,3,2,9"},
		{name: "fractions", src: `1/4`, want: "0.25"},
		{name: "bitwise not", src: `~5`, want: "-6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(run(t, tt.src, nil)); got != tt.want {
				t.Errorf("Run(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestRunStringAndArrayBuiltins(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "split join", src: `"abc".split("").join("-")`, want: "a-b-c"},
		{name: "split sep", src: `"a,b,c".split(",").length`, want: "3"},
		{name: "reverse", src: `var a="abc".split("");a.reverse();a.join("")`, want: "cba"},
		{name: "slice", src: `"abcdef".split("").slice(2).join("")`, want: "cdef"},
		{name: "slice negative", src: `[1,2,3,4].slice(-2).join()`, want: "3,4"},
		{name: "splice", src: `var a=[1,2,3,4,5]; var r=a.splice(1,2); a.join()+"|"+r.join()`, want: "1,4,5|2,3"},
		{name: "splice insert", src: `var a=[1,4]; a.splice(1,0,2,3); a.join()`, want: "1,2,3,4"},
		{name: "push pop", src: `var a=[1]; a.push(2,3); var p=a.pop(); a.join()+"|"+p`, want: "1,2|3"},
		{name: "shift unshift", src: `var a=[2,3]; a.unshift(0,1); var s=a.shift(); a.join()+"|"+s`, want: "1,2,3|0"},
		{name: "indexOf", src: `[5,6,7].indexOf(7)+":"+"hello".indexOf("l")`, want: "2:2"},
		{name: "concat", src: `[1].concat([2,3],4).join()`, want: "1,2,3,4"},
		{name: "charAt charCodeAt", src: `"abc".charAt(1)+"abc".charCodeAt(2)`, want: "b99"},
		{name: "substring substr", src: `"abcdef".substring(4,1)+"|"+"abcdef".substr(2,3)`, want: "bcd|cde"},
		{name: "case", src: `"AbC".toUpperCase()+"AbC".toLowerCase()`, want: "ABCabc"},
		{name: "string index", src: `"xyz"[1]`, want: "y"},
		{name: "array length write", src: `var a=[1,2,3]; a.length=1; a.join()`, want: "1"},
		{name: "array index write", src: `var a=[]; a[2]="c"; a.length`, want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(run(t, tt.src, nil)); got != tt.want {
				t.Errorf("Run(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestRunControlFlow(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "for loop",
			src:  `var s=0; for(var i=0;i<5;i++){ if(i==3) continue; s+=i } s`,
			want: "7",
		},
		{
			name: "while break",
			src:  `var n=0; while(true){ n++; if(n>4) break } n`,
			want: "5",
		},
		{
			name: "do while",
			src:  `var n=10; do { n++ } while(n<5); n`,
			want: "11",
		},
		{
			name: "switch fallthrough",
			src: `function f(x){ var out=""; switch(x){ case 1: out+="one"; case 2: out+="two"; break; default: out+="other" } return out }
				f(1)+","+f(2)+","+f(3)`,
			want: "onetwo,two,other",
		},
		{
			name: "try catch",
			src:  `var r; try { throw "boom" } catch(e) { r = "caught " + e } r`,
			want: "caught boom",
		},
		{
			name: "runtime error is catchable",
			src:  `var r; try { missing() } catch(e) { r = "ok" } r`,
			want: "ok",
		},
		{
			name: "finally runs",
			src:  `var log=[]; function f(){ try { return 1 } finally { log.push("f") } } f()+log.join()`,
			want: "1f",
		},
		{
			name: "hoisted function",
			src:  `var r = g(2); function g(x){ return x*21 } r`,
			want: "42",
		},
		{
			name: "closure",
			src:  `function counter(){ var c=0; return function(){ c++; return c } } var k=counter(); k(); k(); k()`,
			want: "3",
		},
		{
			name: "recursion",
			src:  `function fib(n){ return n<2?n:fib(n-1)+fib(n-2) } fib(10)`,
			want: "55",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(run(t, tt.src, nil)); got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunCipherShapedRoutine(t *testing.T) {
	src := `var Zz={rv:function(a){return a.reverse()},sl:function(a,b){return a.slice(b)},
		sw:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c},sp:function(a,b){a.splice(0,b)}};
		var dec=function(a){a=a.split("");a=Zz.rv(a,1);Zz.sw(a,3);a=Zz.sl(a,1);Zz.sp(a,1);return a.join("")};
		dec(sig)`
	got := run(t, src, map[string]Value{"sig": "abcdefgh"})
	// reverse: hgfedcba, swap 3: egfhdcba, slice 1: gfhdcba, splice 1: fhdcba
	if got != "fhdcba" {
		t.Errorf("routine result = %v, want fhdcba", got)
	}
}

func TestRunSelfReferencingArrays(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "join", src: `var c=[];c.push(c);c.join("")`, want: ""},
		{name: "concat", src: `var c=[];c.push(c);c+""`, want: ""},
		{name: "with elements", src: `var c="ab".split("");c.push(c);c.join("")`, want: "ab"},
		{name: "indexed self", src: `var c=[1,2,3];c[1]=c;c.join("-")`, want: "1--3"},
		{name: "mutual", src: `var c=[1];var d=[c,2];c.push(d);c.join("-")`, want: "1-,2"},
		{name: "shared not cyclic", src: `var e=[7];var c=[e,e];c.join("|")`, want: "7|7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(run(t, tt.src, nil)); got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunBindingsAreIsolated(t *testing.T) {
	in := New()
	if _, err := in.Run(`leak = 1`, nil); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	v, err := in.Run(`typeof leak`, nil)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if v != "undefined" {
		t.Errorf("global from previous run visible: typeof leak = %v", v)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		syntax    bool
		exception bool
	}{
		{name: "regex literal", src: `var r=/a+/;`, syntax: true},
		{name: "new", src: `var d=new Date();`, syntax: true},
		{name: "this", src: `this.x`, syntax: true},
		{name: "arrow", src: `var f=(a)=>a;`, syntax: true},
		{name: "for in", src: `for (var k in o) {}`, syntax: true},
		{name: "template", src: "var s=`x`;", syntax: true},
		{name: "unterminated string", src: `"abc`, syntax: true},
		{name: "undefined variable", src: `nope + 1`, exception: true},
		{name: "not a function", src: `var x=1; x()`, exception: true},
		{name: "member of undefined", src: `var x; x.y`, exception: true},
		{name: "uncaught throw", src: `throw "bad"`, exception: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Run(tt.src, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			var se *SyntaxError
			var ex *Exception
			if tt.syntax && !errors.As(err, &se) {
				t.Errorf("error = %v, want *SyntaxError", err)
			}
			if tt.exception && !errors.As(err, &ex) {
				t.Errorf("error = %v, want *Exception", err)
			}
		})
	}
}

func TestRunStepBudget(t *testing.T) {
	_, err := New(WithMaxSteps(1000)).Run(`while(true){}`, nil)
	if !errors.Is(err, ErrStepBudget) {
		t.Fatalf("error = %v, want ErrStepBudget", err)
	}

	_, err = New(WithMaxSteps(1000)).Run(`try { while(true){} } catch(e) {}`, nil)
	if !errors.Is(err, ErrStepBudget) {
		t.Errorf("budget exhaustion must not be catchable, got %v", err)
	}
}

func TestRunCallDepth(t *testing.T) {
	_, err := New().Run(`function f(){ return f() } f()`, nil)
	if !errors.Is(err, ErrCallDepth) {
		t.Fatalf("error = %v, want ErrCallDepth", err)
	}
}
