package m2c

import (
	"strconv"
	"strings"
)

// maxArrayBytes caps global static arrays at one mebibyte; anything
// larger is almost certainly a misparsed length.
const maxArrayBytes = 1048576

// program is the top level loop.  GR: program <- (constant / typedef
// / enum / declaration)*
func (c *Compiler) program() {
	for !c.stream.done() {
		t := c.stream.peek()
		switch {
		case t.Text == "CONSTANT":
			c.constantDeclaration()
		case t.Text == "typedef":
			c.typedefDeclaration()
		case t.Text == "enum":
			c.enumDeclaration()
		case c.isTypeStart(t):
			c.globalDeclaration()
		default:
			c.failAt(t, "`%s` is not a valid top level declaration", t.Text)
		}
	}
}

// parseTypeName resolves an optional struct/union/signedness prefix,
// a base type name and any number of `*` suffixes.  A struct or
// union name followed by `{` defines the aggregate's members in
// place; an unknown one becomes a forward declaration.
func (c *Compiler) parseTypeName() *Type {
	t := c.stream.peek()
	var typ *Type
	switch t.Text {
	case "struct", "union":
		union := t.Text == "union"
		c.stream.next()
		name := c.stream.next()
		typ = c.reg.lookup(name.Text)
		if typ == nil {
			typ = c.reg.addAggregate(name.Text)
		}
		if !c.stream.done() && c.stream.peek().Text == "{" {
			c.defineMembers(typ, union)
		}
	case "unsigned", "signed":
		c.stream.next()
		base := c.stream.peek()
		if lt := c.reg.lookup(t.Text + " " + base.Text); lt != nil {
			c.stream.next()
			typ = lt
		} else if bt := c.reg.lookup(base.Text); bt != nil && t.Text == "signed" {
			c.stream.next()
			typ = bt
		} else if t.Text == "unsigned" {
			typ = c.reg.lookup("unsigned")
		} else {
			typ = c.reg.lookup("int")
		}
	default:
		c.stream.next()
		typ = c.reg.lookup(t.Text)
		if typ == nil {
			c.failAt(t, "unknown type `%s`", t.Text)
		}
	}
	for !c.stream.done() && c.stream.peek().Text == "*" {
		c.stream.next()
		typ = typ.Indirect
	}
	return typ
}

// defineMembers fills in an aggregate's member list.  Offsets are the
// running sum of the preceding member sizes; unions overlay all
// members at offset zero and take the size of the widest one.
func (c *Compiler) defineMembers(typ *Type, union bool) {
	c.stream.match("{", "struct")
	offset := 0
	size := 0
	var members []*Type
	for c.stream.peek().Text != "}" {
		mt := c.parseTypeName()
		name := c.stream.next()
		if !isIdentifierStart(name.Text[0]) {
			c.failAt(name, "`%s` is not a valid member name", name.Text)
		}
		m := &Type{
			Name:      name.Text,
			Size:      mt.Size,
			Signed:    mt.Signed,
			Offset:    offset,
			Indirect:  mt.Indirect,
			ValueType: mt.ValueType,
			Members:   mt.Members,
		}
		members = append(members, m)
		if union {
			if mt.Size > size {
				size = mt.Size
			}
		} else {
			offset = offset + mt.Size
			size = size + mt.Size
		}
		c.stream.match(";", "struct")
	}
	c.stream.next()
	typ.Members = members
	typ.Size = size
}

// constantDeclaration registers `CONSTANT name value`, whose loader
// emits a literal move.  `sizeof(type)` is folded at declaration
// time.
func (c *Compiler) constantDeclaration() {
	c.stream.match("CONSTANT", "constant")
	name := c.stream.next()
	var value string
	if c.stream.peek().Text == "sizeof" {
		c.stream.next()
		c.stream.match("(", "constant")
		typ := c.parseTypeName()
		c.stream.match(")", "constant")
		value = strconv.Itoa(typ.Size)
	} else {
		value = c.stream.next().Text
	}
	c.constants = append(c.constants, &Token{
		Text:      name.Text,
		Arguments: []*Token{{Text: value}},
	})
	if !c.stream.done() && c.stream.peek().Text == ";" {
		c.stream.next()
	}
}

func (c *Compiler) typedefDeclaration() {
	c.stream.match("typedef", "typedef")
	src := c.parseTypeName()
	name := c.stream.next()
	c.stream.match(";", "typedef")
	c.reg.mirror(src, name.Text)
}

// enumDeclaration registers each enumerator as an integer constant,
// counting up from zero or from the last explicit value.
func (c *Compiler) enumDeclaration() {
	c.stream.match("enum", "enum")
	if c.stream.peek().Text != "{" {
		c.stream.next()
	}
	c.stream.match("{", "enum")
	value := 0
	for c.stream.peek().Text != "}" {
		name := c.stream.next()
		if c.stream.peek().Text == "=" {
			c.stream.next()
			v := c.stream.next()
			parsed, err := strconv.ParseInt(v.Text, 0, 64)
			if err != nil {
				c.failAt(v, "`%s` is not a valid enum value", v.Text)
			}
			value = int(parsed)
		}
		c.constants = append(c.constants, &Token{
			Text:      name.Text,
			Arguments: []*Token{{Text: strconv.Itoa(value)}},
		})
		value++
		if c.stream.peek().Text == "," {
			c.stream.next()
		}
	}
	c.stream.next()
	c.stream.match(";", "enum")
}

// globalDeclaration handles everything that starts with a type name:
// bare struct definitions, global scalars with or without
// initializers, global static arrays and functions.
func (c *Compiler) globalDeclaration() {
	typ := c.parseTypeName()
	if c.stream.peek().Text == ";" {
		c.stream.next()
		return
	}
	name := c.stream.next()
	if !isIdentifierStart(name.Text[0]) {
		c.failAt(name, "`%s` is not a valid global name", name.Text)
	}

	switch c.stream.peek().Text {
	case ";":
		c.stream.next()
		c.globals = append(c.globals, &Token{Text: name.Text, Type: typ})
		c.globalData.write(":GLOBAL_" + name.Text + "\n")
		c.globalData.write(c.spec.zeroWords(c.wordsFor(typ.Size)))
	case "=":
		c.stream.next()
		c.globalInitializer(typ, name)
	case "[":
		c.stream.next()
		c.globalArray(typ, name)
	case "(":
		c.declareFunction(typ, name)
	default:
		c.fail("`%s` cannot follow a global declaration", c.stream.peek().Text)
	}
}

func (c *Compiler) globalInitializer(typ *Type, name *Token) {
	c.globals = append(c.globals, &Token{Text: name.Text, Type: typ})
	c.globalData.write(":GLOBAL_" + name.Text + "\n")

	v := c.stream.next()
	switch {
	case isNumber(v.Text):
		c.globalData.write(c.spec.wordLiteral(v.Text))
	case v.Text == "-" && isNumber(c.stream.peek().Text):
		c.globalData.write(c.spec.wordLiteral("-" + c.stream.next().Text))
	case strings.HasPrefix(v.Text, `"`):
		contents := "GLOBAL_" + name.Text + "_contents"
		c.globalData.write(c.spec.pointerLiteral(contents))
		c.globalData.write(":" + contents + "\n")
		c.globalData.write(renderStringData(decodeEscapes(v.Text[1 : len(v.Text)-1])))
	default:
		c.failAt(v, "`%s` is not a valid global initializer", v.Text)
	}
	c.stream.match(";", "global")
}

// globalArray reserves count*size zeroed bytes behind a pointer cell,
// so loading the symbol yields the storage address like any other
// pointer-typed global.
func (c *Compiler) globalArray(typ *Type, name *Token) {
	v := c.stream.next()
	if v.Text == "-" {
		c.failAt(v, "negative array length")
	}
	count, err := strconv.ParseInt(v.Text, 0, 64)
	if err != nil {
		c.failAt(v, "`%s` is not a valid array length", v.Text)
	}
	c.stream.match("]", "array")
	c.stream.match(";", "array")

	bytes := int(count) * typ.Size
	if bytes > maxArrayBytes {
		c.failAt(v, "array of %d bytes exceeds the %d byte limit", bytes, maxArrayBytes)
	}

	c.globals = append(c.globals, &Token{Text: name.Text, Type: typ.Indirect})
	contents := "GLOBAL_" + name.Text + "_contents"
	c.globalData.write(":GLOBAL_" + name.Text + "\n")
	c.globalData.write(c.spec.pointerLiteral(contents))
	c.globalData.write(":" + contents + "\n")
	out := &strings.Builder{}
	for i := 0; i < bytes; i++ {
		out.WriteString("00")
		if (i+1)%16 == 0 {
			out.WriteString("\n")
		} else {
			out.WriteString(" ")
		}
	}
	if bytes%16 != 0 {
		out.WriteString("\n")
	}
	c.globalData.write(out.String())
}

// declareFunction parses an argument list and either records a
// prototype or emits the definition.  Argument depths count away
// from the frame base in declaration order.
func (c *Compiler) declareFunction(returns *Type, name *Token) {
	f := c.findFunction(name.Text)
	if f == nil {
		f = &function{name: name.Text, returns: returns}
		c.functions = append(c.functions, f)
	}

	c.stream.match("(", "function")
	var args []*Token
	for c.stream.peek().Text != ")" {
		if c.stream.peek().Text == "void" && c.stream.peekAhead(1) != nil && c.stream.peekAhead(1).Text == ")" {
			c.stream.next()
			break
		}
		at := c.parseTypeName()
		argName := ""
		if t := c.stream.peek(); t.Text != "," && t.Text != ")" {
			argName = c.stream.next().Text
		}
		args = append(args, &Token{
			Text:  argName,
			Type:  at,
			Depth: c.stackDirection() * c.spec.wordSize * (len(args) + 1),
		})
		if c.stream.peek().Text == "," {
			c.stream.next()
		}
	}
	c.stream.match(")", "function")

	if c.stream.peek().Text == ";" {
		c.stream.next()
		f.arguments = args
		return
	}

	if f.defined {
		c.failAt(name, "function `%s` is defined twice", name.Text)
	}
	if c.spec.arch == KnightNative && name.Text == "main" && len(args) > 0 {
		c.failAt(name, "main cannot take arguments on knight-native")
	}

	f.defined = true
	f.arguments = args
	f.returns = returns
	f.locals = nil
	f.counter = 0

	c.fn = f
	c.emitLabel("FUNCTION_" + name.Text)
	if c.stream.peek().Text != "{" {
		c.fail("function bodies must be blocks")
	}
	c.block()
	if c.code.lastFragment() != c.spec.ret {
		c.emitFunctionExit()
	}
	c.fn = nil
}
