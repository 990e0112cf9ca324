package m2c

// Type is an entry in the global type registry.  Value types, their
// pointer forms and struct members all share this shape.
//
// Indirect links a value type to its pointer form, the pointer form
// to the pointer-to-pointer form, and the pointer-to-pointer form
// back to the pointer form, so chasing Indirect never escapes the
// ring.  ValueType is the type an expression of this type yields when
// dereferenced: itself for value types, the pointee for pointer
// forms.
type Type struct {
	Name      string
	Size      int
	Signed    bool
	Offset    int
	Indirect  *Type
	ValueType *Type
	Members   []*Type
}

// typeRegistry grows monotonically during a compile.  Lookups are
// linear scans; the registry never holds more than a few dozen
// entries for the accepted language.
type typeRegistry struct {
	types    []*Type
	wordSize int
}

// addPrimitive registers a value type together with its pointer ring.
// The pointer forms are register sized regardless of the value size.
func (r *typeRegistry) addPrimitive(name string, size int, signed bool) *Type {
	t := &Type{Name: name, Size: size, Signed: signed}
	p := &Type{Name: name + "*", Size: r.wordSize, ValueType: t}
	pp := &Type{Name: name + "**", Size: r.wordSize, ValueType: p}
	t.ValueType = t
	t.Indirect = p
	p.Indirect = pp
	pp.Indirect = p
	r.types = append(r.types, t)
	return t
}

// addAggregate registers an empty struct or union shell together
// with its pointer ring.  Members and size are filled in when the
// body is parsed, which also makes self-referential pointer members
// work.
func (r *typeRegistry) addAggregate(name string) *Type {
	t := r.addPrimitive(name, 0, false)
	t.Members = []*Type{}
	return t
}

// lookup returns the registered type with the given name, or nil.
// Pointer forms are reached through Indirect, never by name.
func (r *typeRegistry) lookup(name string) *Type {
	for _, t := range r.types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// mirror registers a shallow alias of src under a new name.  The
// alias shares size, signedness, pointer ring and members; only the
// name differs.  This is how typedef works.
func (r *typeRegistry) mirror(src *Type, name string) *Type {
	t := &Type{
		Name:      name,
		Size:      src.Size,
		Signed:    src.Signed,
		Indirect:  src.Indirect,
		ValueType: src.ValueType,
		Members:   src.Members,
	}
	if src.ValueType == src {
		t.ValueType = t
	}
	r.types = append(r.types, t)
	return t
}

// lookupMember scans the aggregate's member list.  A missing member
// aborts at the caller with the offending token's provenance.
func lookupMember(parent *Type, name string) *Type {
	for _, m := range parent.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// initializeTypes primes the registry with the primitive types of the
// accepted language for the selected architecture.  Pointer sizes and
// the long family track the register width; int stays four bytes on
// every target.
func initializeTypes(wordSize int) *typeRegistry {
	r := &typeRegistry{wordSize: wordSize}
	r.addPrimitive("void", 1, false)
	r.addPrimitive("char", 1, true)
	r.addPrimitive("int", 4, true)
	unsigned := r.addPrimitive("unsigned", 4, false)
	long := r.addPrimitive("long", wordSize, true)
	ulong := r.addPrimitive("unsigned long", wordSize, false)
	r.mirror(unsigned, "unsigned int")
	r.mirror(ulong, "size_t")
	r.mirror(long, "ssize_t")
	r.mirror(r.lookup("void"), "FILE")
	r.addPrimitive("FUNCTION", wordSize, false)
	return r
}
