package fixtures

// Pair is a key/value argument
type Pair struct {
	Key   string
	Value int
}

// TestStruct is a value-type result
type TestStruct struct {
	A int64
	B int64
}

// Class3 logs the path taken through a body that recovers its own fault
type Class3 struct {
	log string
}

// NewClass3 creates a Class3 with an initial log of "-"
func NewClass3() *Class3 {
	return &Class3{log: "-"}
}

// Log returns the log
func (c *Class3) Log() string {
	return c.log
}

// Class6Struct is a struct-typed private field
type Class6Struct struct {
	D1, D2, D3 float64
}

// Class6 has private fields rewritten by a prefix
type Class6 struct {
	someFloat  float32
	someString string
	someStruct Class6Struct
}

// Class7 records the argument of its method in a private field
type Class7 struct {
	state1 any
}

// NewClass7 creates a Class7 with state1 set to "-"
func NewClass7() *Class7 {
	return &Class7{state1: "-"}
}

// State1 returns the private field
func (c *Class7) State1() any {
	return c.state1
}

// Class11 reports whether its original ran
type Class11 struct {
	OriginalMethodRan bool
}

// Class12 has a read-only private field
type Class12 struct {
	count int
}

// NewClass12 creates a Class12 producing count entries
func NewClass12(count int) *Class12 {
	return &Class12{count: count}
}

// Class13 stores added items
type Class13 struct {
	store []int
}

// Items returns the stored items
func (c *Class13) Items() []int {
	return append([]int(nil), c.store...)
}

// Struct1 is a value-like receiver mutated by its original
type Struct1 struct {
	N int
	S string
}

// Struct2 is a receiver rewritten by a postfix through __instance
type Struct2 struct {
	S string
}
