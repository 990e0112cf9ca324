package m2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every registered type resolves through its pointer ring: the value
// form reaches the pointer form, the pointer form reaches the
// pointer-to-pointer form, and that one folds back onto the pointer
// form.
func TestPointerRing(t *testing.T) {
	reg := initializeTypes(8)
	for _, typ := range reg.types {
		require.NotNil(t, typ.Indirect, typ.Name)
		assert.Equal(t, typ.Indirect, typ.Indirect.Indirect.Indirect, typ.Name)
		assert.Equal(t, typ.Indirect, typ.Indirect.Indirect.Indirect.Indirect.Indirect, typ.Name)
	}
}

func TestPrimitiveSizes(t *testing.T) {
	for _, test := range []struct {
		Name     string
		WordSize int
		Type     string
		Size     int
		Signed   bool
	}{
		{"char is one signed byte", 8, "char", 1, true},
		{"int stays four bytes on 64-bit", 8, "int", 4, true},
		{"int stays four bytes on 32-bit", 4, "int", 4, true},
		{"long tracks the register width", 8, "long", 8, true},
		{"long tracks the register width on 32-bit", 4, "long", 4, true},
		{"size_t is an unsigned word", 8, "size_t", 8, false},
		{"unsigned int mirrors unsigned", 4, "unsigned int", 4, false},
	} {
		t.Run(test.Name, func(t *testing.T) {
			reg := initializeTypes(test.WordSize)
			typ := reg.lookup(test.Type)
			require.NotNil(t, typ)
			assert.Equal(t, test.Size, typ.Size)
			assert.Equal(t, test.Signed, typ.Signed)
		})
	}
}

func TestPointersAreWordSized(t *testing.T) {
	reg := initializeTypes(4)
	assert.Equal(t, 4, reg.lookup("char").Indirect.Size)
	assert.Equal(t, 4, reg.lookup("long").Indirect.Indirect.Size)
}

func TestMirrorSharesShape(t *testing.T) {
	reg := initializeTypes(8)
	src := reg.lookup("unsigned long")
	alias := reg.mirror(src, "uintptr_t")

	assert.Equal(t, src.Size, alias.Size)
	assert.Equal(t, src.Signed, alias.Signed)
	assert.Equal(t, src.Indirect, alias.Indirect)
	assert.Equal(t, alias, reg.lookup("uintptr_t"))
}

func TestStructMemberOffsets(t *testing.T) {
	input := `
struct pair { int first; int second; char tag; };
`
	_, err := Compile(input, "test.c", Options{Architecture: AMD64})
	require.NoError(t, err)

	// re-run the front half directly to inspect the registry
	c := &Compiler{
		opts:       Options{Architecture: AMD64},
		spec:       specs[AMD64],
		reg:        initializeTypes(8),
		code:       newSectionWriter(),
		globalData: newSectionWriter(),
		stringData: newSectionWriter(),
	}
	tokens, err := Tokenize(input, "test.c")
	require.NoError(t, err)
	c.stream = &tokenStream{tokens: tokens}
	c.program()

	pair := c.reg.lookup("pair")
	require.NotNil(t, pair)
	require.Len(t, pair.Members, 3)
	assert.Equal(t, 0, pair.Members[0].Offset)
	assert.Equal(t, 4, pair.Members[1].Offset)
	assert.Equal(t, 8, pair.Members[2].Offset)
	assert.Equal(t, 9, pair.Size)
}

func TestUnionMembersOverlay(t *testing.T) {
	c := &Compiler{
		opts:       Options{Architecture: X86},
		spec:       specs[X86],
		reg:        initializeTypes(4),
		code:       newSectionWriter(),
		globalData: newSectionWriter(),
		stringData: newSectionWriter(),
	}
	tokens, err := Tokenize("union cell { int number; char* text; char byte; };", "test.c")
	require.NoError(t, err)
	c.stream = &tokenStream{tokens: tokens}
	c.program()

	cell := c.reg.lookup("cell")
	require.NotNil(t, cell)
	require.Len(t, cell.Members, 3)
	for _, m := range cell.Members {
		assert.Equal(t, 0, m.Offset, m.Name)
	}
	assert.Equal(t, 4, cell.Size)
}

func TestSelfReferentialStruct(t *testing.T) {
	input := `
struct node { int value; struct node* next; };
int main() {
	struct node n;
	n.value = 7;
	return n.value;
}
`
	out, err := Compile(input, "test.c", Options{Architecture: AMD64})
	require.NoError(t, err)
	assert.Contains(t, out, ":FUNCTION_main")
}
