package raw

// Null is the PDF null object.
type Null struct{}

func (Null) Kind() Kind { return KindNull }

// Boolean is a PDF boolean.
type Boolean struct{ V bool }

func (Boolean) Kind() Kind { return KindBoolean }

// Number is a PDF numeric value, integer or real.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

func (Number) Kind() Kind { return KindNumber }

func (n Number) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// String is a PDF string, literal or hex. Bytes are stored decoded.
type String struct {
	Bytes []byte
	Hex   bool
}

func (String) Kind() Kind { return KindString }

// Name is a PDF name object, stored without the leading slash.
type Name struct{ Val string }

func (Name) Kind() Kind { return KindName }

// Array is an ordered sequence of objects.
type Array struct{ Items []Object }

func (*Array) Kind() Kind { return KindArray }

func (a *Array) Len() int { return len(a.Items) }

func (a *Array) At(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

func (a *Array) Append(o Object) { a.Items = append(a.Items, o) }

// Dict is a key/value mapping with unique string keys. Declaration order is
// preserved so that edge emission and traversal stay deterministic.
type Dict struct {
	keys []string
	kv   map[string]Object
}

func NewDict() *Dict { return &Dict{kv: make(map[string]Object)} }

func (*Dict) Kind() Kind { return KindDict }

func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the dictionary keys in declaration order.
func (d *Dict) Keys() []string { return d.keys }

func (d *Dict) Get(key string) (Object, bool) {
	if d == nil || d.kv == nil {
		return nil, false
	}
	o, ok := d.kv[key]
	return o, ok
}

// Set inserts or replaces a key. A replaced key keeps its original position.
func (d *Dict) Set(key string, value Object) {
	if d.kv == nil {
		d.kv = make(map[string]Object)
	}
	if _, exists := d.kv[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.kv[key] = value
}

// Name returns the string value of a name-valued entry.
func (d *Dict) Name(key string) (string, bool) {
	o, ok := d.Get(key)
	if !ok {
		return "", false
	}
	n, ok := o.(Name)
	if !ok {
		return "", false
	}
	return n.Val, true
}

// Int returns the integer value of a numeric entry.
func (d *Dict) Int(key string) (int64, bool) {
	o, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := o.(Number)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// Stream pairs a stream dictionary with its raw (still encoded) payload.
type Stream struct {
	Dict *Dict
	Raw  []byte
}

func (*Stream) Kind() Kind { return KindStream }

// Ref is an indirect reference to another object.
type Ref struct{ R ObjectRef }

func (Ref) Kind() Kind { return KindRef }
