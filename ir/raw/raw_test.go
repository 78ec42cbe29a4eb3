package raw

import "testing"

func TestParseRefSpellings(t *testing.T) {
	want := ObjectRef{Num: 12, Gen: 0}
	for _, s := range []string{"12 0 R", "12 0", "12-0", "12_0", "12:0", "  12 0 r "} {
		got, err := ParseRef(s)
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if got != want {
			t.Fatalf("%q: got %v", s, got)
		}
	}
	if got, err := ParseRef("7 3 R"); err != nil || got != (ObjectRef{Num: 7, Gen: 3}) {
		t.Fatalf("generation: %v %v", got, err)
	}
}

func TestParseRefInvalid(t *testing.T) {
	for _, s := range []string{"", "12", "abc", "x y R"} {
		if _, err := ParseRef(s); err == nil {
			t.Fatalf("%q: expected error", s)
		}
	}
}

func TestRefString(t *testing.T) {
	if got := (ObjectRef{Num: 12, Gen: 3}).String(); got != "12 3 R" {
		t.Fatalf("got %q", got)
	}
}

func TestDictPreservesKeyOrder(t *testing.T) {
	d := NewDict()
	d.Set("B", Null{})
	d.Set("A", Null{})
	d.Set("C", Null{})
	d.Set("A", Boolean{V: true}) // replace keeps position

	keys := d.Keys()
	if len(keys) != 3 || keys[0] != "B" || keys[1] != "A" || keys[2] != "C" {
		t.Fatalf("keys: %v", keys)
	}
	v, ok := d.Get("A")
	if !ok {
		t.Fatal("A missing")
	}
	if b, ok := v.(Boolean); !ok || !b.V {
		t.Fatalf("A: %#v", v)
	}
}

func TestDocumentResolve(t *testing.T) {
	doc := &Document{Objects: map[ObjectRef]Object{
		{Num: 1}: Name{Val: "X"},
	}}
	if got := doc.Resolve(Ref{R: ObjectRef{Num: 1}}); got != (Name{Val: "X"}) {
		t.Fatalf("resolve: %#v", got)
	}
	if got := doc.Resolve(Ref{R: ObjectRef{Num: 9}}); got != (Null{}) {
		t.Fatalf("dangling: %#v", got)
	}
	if got := doc.Resolve(Boolean{V: true}); got != (Boolean{V: true}) {
		t.Fatalf("direct: %#v", got)
	}
}

func TestDocumentRefsSorted(t *testing.T) {
	doc := &Document{Objects: map[ObjectRef]Object{
		{Num: 3}:         Null{},
		{Num: 1, Gen: 1}: Null{},
		{Num: 1}:         Null{},
	}}
	refs := doc.Refs()
	if len(refs) != 3 {
		t.Fatalf("refs: %v", refs)
	}
	if refs[0] != (ObjectRef{Num: 1}) || refs[1] != (ObjectRef{Num: 1, Gen: 1}) || refs[2] != (ObjectRef{Num: 3}) {
		t.Fatalf("order: %v", refs)
	}
}
