package m2c

import (
	"fmt"
	"strings"
)

// Options selects the target and acceptance mode for one compile.
type Options struct {
	Architecture Architecture

	// BootstrapMode narrows the accepted grammar for compiling the
	// seed compiler with itself: `.` member access and compound
	// assignment are rejected.
	BootstrapMode bool
}

// function is the record of the function currently being parsed:
// its argument and local symbol lists and the counter that keeps
// synthesized labels unique within it.
type function struct {
	name      string
	returns   *Type
	arguments []*Token
	locals    []*Token
	counter   int
	defined   bool
}

// Compiler holds all state of a single compile: the token cursor, the
// type registry, the symbol lists, the active function and the three
// output sections.  There is exactly one of these per compile and no
// concurrency; productions mutate it freely.
type Compiler struct {
	opts Options
	spec *archSpec
	reg  *typeRegistry

	stream *tokenStream

	globals   []*Token
	constants []*Token
	functions []*function

	fn *function

	code       *sectionWriter
	globalData *sectionWriter
	stringData *sectionWriter

	// Break frame: the target label heads, the label suffix, and the
	// locals count snapshotted at loop or switch entry.  Productions
	// save these into Go locals and restore them on exit.
	breakHead    string
	continueHead string
	breakID      string
	breakFrame   int
	inLoopBody   bool
}

// Compile translates one concatenated input stream into the symbolic
// assembly text for the selected architecture.  The first error
// aborts; on success the returned text carries the three labeled
// sections terminated by :STACK.
func Compile(input, file string, opts Options) (out string, err error) {
	defer recoverCompileError(&err)

	spec, ok := specs[opts.Architecture]
	if !ok {
		return "", fmt.Errorf("unknown architecture %d", int(opts.Architecture))
	}

	tokens := newLexer(input, file).tokenize()
	tokens = purgeLineComments(tokens)
	tokens = purgeDirectives(tokens)
	tokens = purgeNewlines(tokens)

	c := &Compiler{
		opts:       opts,
		spec:       spec,
		reg:        initializeTypes(spec.wordSize),
		stream:     &tokenStream{tokens: tokens},
		code:       newSectionWriter(),
		globalData: newSectionWriter(),
		stringData: newSectionWriter(),
	}
	c.program()
	return serializeOutput(c.code, c.globalData, c.stringData), nil
}

// failAt aborts the compile with the provenance of the given token.
func (c *Compiler) failAt(t *Token, format string, args ...interface{}) {
	abort(t.Filename, t.Linenumber, format, args...)
}

// fail aborts at the token under the cursor.
func (c *Compiler) fail(format string, args ...interface{}) {
	c.failAt(c.stream.peek(), format, args...)
}

// uniqueID hands out the next label suffix for the active function,
// e.g. `main_0`.  Counters strictly increase and never repeat within
// a function.
func (c *Compiler) uniqueID() string {
	id := fmt.Sprintf("%s_%d", c.fn.name, c.fn.counter)
	c.fn.counter++
	return id
}

// Symbol lookup helpers.  Scans are linear and shadowing follows the
// lookup order of primary expressions: constants, locals, arguments,
// functions, globals.

func findSymbol(list []*Token, name string) *Token {
	for _, s := range list {
		if s.Text == name {
			return s
		}
	}
	return nil
}

func (c *Compiler) findFunction(name string) *function {
	for _, f := range c.functions {
		if f.name == name {
			return f
		}
	}
	return nil
}

// emit appends a fragment to the code section.
func (c *Compiler) emit(s string) {
	c.code.write(s)
}

func (c *Compiler) emitf(format string, args ...interface{}) {
	c.code.writef(format, args...)
}

// emitLabel defines a label in the code section.
func (c *Compiler) emitLabel(name string) {
	c.code.write(":" + name + "\n")
}

// isNumber reports whether the token text is an integer literal,
// decimal or hex.  The text passes through to the assembler verbatim.
func isNumber(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) == 2 {
			return false
		}
		for _, r := range s[2:] {
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// decodeEscapes resolves backslash escapes in a string or character
// literal body.  Unknown escapes keep the escaped byte.
func decodeEscapes(s string) string {
	out := &strings.Builder{}
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case '0':
			out.WriteByte(0)
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}

// renderStringData writes one decoded string into the strings
// section: quoted when every byte is printable and none is a double
// quote, hex pairs with an explicit terminator otherwise.
func renderStringData(s string) string {
	printable := true
	for i := 0; i < len(s); i++ {
		if s[i] < 32 || s[i] > 126 || s[i] == '"' {
			printable = false
			break
		}
	}
	if printable {
		return "\"" + s + "\"\n"
	}
	out := &strings.Builder{}
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(out, "%02X ", s[i])
	}
	out.WriteString("00\n")
	return out.String()
}

// wordsFor returns how many stack words a type of the given size
// occupies.
func (c *Compiler) wordsFor(size int) int {
	words := size / c.spec.wordSize
	if size%c.spec.wordSize != 0 {
		words++
	}
	if words == 0 {
		words = 1
	}
	return words
}
