package m2c

import (
	"strings"

	"github.com/samber/lo"
)

// statement dispatches on the token under the cursor.  GR:
// statement <- block / declaration / if / switch / do / while / for /
//              asm / goto / return / break / continue / label /
//              expression ';'
func (c *Compiler) statement() {
	t := c.stream.peek()
	switch {
	case t.Text == "{":
		c.block()
	case c.isTypeStart(t):
		c.collectLocal()
	case t.Text == "if":
		c.ifStatement()
	case t.Text == "switch":
		c.switchStatement()
	case t.Text == "do":
		c.doStatement()
	case t.Text == "while":
		c.whileStatement()
	case t.Text == "for":
		c.forStatement()
	case t.Text == "asm":
		c.asmStatement()
	case t.Text == "goto":
		c.gotoStatement()
	case t.Text == "return":
		c.returnStatement()
	case t.Text == "break":
		c.breakStatement()
	case t.Text == "continue":
		c.continueStatement()
	case strings.HasPrefix(t.Text, ":"):
		c.emit(t.Text + "\n")
		c.stream.next()
	default:
		c.expression()
		c.stream.match(";", "statement")
	}
}

// block parses `{ ... }`.  The locals list is snapshotted on entry;
// slots reserved inside the block are popped and the list restored on
// exit, so names go out of scope and the stack stays balanced.
func (c *Compiler) block() {
	c.stream.match("{", "statement")
	save := len(c.fn.locals)
	for c.stream.peek().Text != "}" {
		c.statement()
	}
	c.stream.next()
	for _, sym := range c.fn.locals[save:] {
		for i := 0; i < c.wordsFor(sym.Type.Size); i++ {
			c.emit(c.spec.popSecondary)
		}
	}
	c.fn.locals = c.fn.locals[:save]
}

func (c *Compiler) isTypeStart(t *Token) bool {
	switch t.Text {
	case "struct", "union", "unsigned", "signed":
		return true
	}
	return c.reg.lookup(t.Text) != nil
}

// collectLocal reserves frame slots for one local declaration and
// records its depth.  Struct locals are biased to the far end of
// their reservation in the direction of stack growth.
func (c *Compiler) collectLocal() {
	at := c.stream.peek()
	if c.inLoopBody {
		c.failAt(at, "cannot declare a local inside a loop body")
	}
	typ := c.parseTypeName()
	name := c.stream.next()
	if !isIdentifierStart(name.Text[0]) {
		c.failAt(name, "`%s` is not a valid local name", name.Text)
	}

	words := c.wordsFor(typ.Size)
	slot := c.localSlotDepth()
	depth := slot
	if typ.Members != nil {
		depth = slot + c.stackDirection()*(words-1)*c.spec.wordSize
	}

	sym := &Token{
		Text:       name.Text,
		Filename:   name.Filename,
		Linenumber: name.Linenumber,
		Type:       typ,
		Depth:      depth,
	}
	c.fn.locals = append(c.fn.locals, sym)
	for i := 0; i < words; i++ {
		c.emit(c.spec.pushPrimary)
	}

	if c.stream.peek().Text == "=" {
		c.stream.next()
		c.emitf(c.spec.localAddr, sym.Depth)
		c.emit(c.spec.pushPrimary)
		c.expression()
		c.emit(c.spec.popSecondary)
		c.emit(c.spec.storeValue(typ.Size, name))
	}
	c.stream.match(";", "collect_local")
}

func (c *Compiler) stackDirection() int {
	if c.spec.stackDown {
		return -1
	}
	return 1
}

// localSlotDepth computes where the next local's reservation starts:
// past the arguments, the frame slack words the calling convention
// keeps on the stack, and every local declared so far.  main on
// Knight-POSIX starts at the fixed depth that skips the argc, argv
// and envp cells the startup stub leaves behind.
func (c *Compiler) localSlotDepth() int {
	used := 0
	for _, sym := range c.fn.locals {
		used = used + c.wordsFor(sym.Type.Size)
	}
	if c.spec.arch == KnightPosix && c.fn.name == "main" {
		return 20 + used*c.spec.wordSize
	}
	words := len(c.fn.arguments) + c.spec.frameSlack + used
	return c.stackDirection() * words * c.spec.wordSize
}

func (c *Compiler) ifStatement() {
	id := c.uniqueID()
	c.stream.match("if", "if")
	c.stream.match("(", "if")
	c.expression()
	c.stream.match(")", "if")
	c.emitf(c.spec.jumpIfZero, "ELSE_"+id)
	c.statement()
	c.emitf(c.spec.jump, "_END_IF_"+id)
	c.emitLabel("ELSE_" + id)
	if !c.stream.done() && c.stream.peek().Text == "else" {
		c.stream.next()
		c.statement()
	}
	c.emitLabel("_END_IF_" + id)
}

// breakFrameState is what every loop and switch production saves into
// Go locals on entry and restores on exit.
type breakFrameState struct {
	breakHead    string
	continueHead string
	breakID      string
	breakFrame   int
	inLoopBody   bool
}

func (c *Compiler) pushBreakFrame(breakHead, continueHead, id string, loop bool) breakFrameState {
	saved := breakFrameState{c.breakHead, c.continueHead, c.breakID, c.breakFrame, c.inLoopBody}
	c.breakHead = breakHead
	c.continueHead = continueHead
	c.breakID = id
	c.breakFrame = len(c.fn.locals)
	c.inLoopBody = loop || c.inLoopBody
	return saved
}

func (c *Compiler) popBreakFrame(saved breakFrameState) {
	c.breakHead = saved.breakHead
	c.continueHead = saved.continueHead
	c.breakID = saved.breakID
	c.breakFrame = saved.breakFrame
	c.inLoopBody = saved.inLoopBody
}

func (c *Compiler) whileStatement() {
	id := c.uniqueID()
	saved := c.pushBreakFrame("END_WHILE_", "WHILE_", id, true)

	c.stream.match("while", "while")
	c.emitLabel("WHILE_" + id)
	c.stream.match("(", "while")
	c.expression()
	c.stream.match(")", "while")
	c.emitf(c.spec.jumpIfZero, "END_WHILE_"+id)
	c.statement()
	c.emitf(c.spec.jump, "WHILE_"+id)
	c.emitLabel("END_WHILE_" + id)

	c.popBreakFrame(saved)
}

func (c *Compiler) doStatement() {
	id := c.uniqueID()
	saved := c.pushBreakFrame("DO_END_", "DO_TEST_", id, true)

	c.stream.match("do", "do")
	c.emitLabel("DO_" + id)
	c.statement()
	c.emitLabel("DO_TEST_" + id)
	c.stream.match("while", "do")
	c.stream.match("(", "do")
	c.expression()
	c.stream.match(")", "do")
	c.stream.match(";", "do")
	c.emitf(c.spec.jumpIfNotZero, "DO_"+id)
	c.emitLabel("DO_END_" + id)

	c.popBreakFrame(saved)
}

func (c *Compiler) forStatement() {
	id := c.uniqueID()
	saved := c.pushBreakFrame("FOR_END_", "FOR_ITER_", id, true)

	c.stream.match("for", "for")
	c.stream.match("(", "for")
	if c.stream.peek().Text != ";" {
		c.expression()
	}
	c.stream.match(";", "for")
	c.emitLabel("FOR_" + id)
	if c.stream.peek().Text != ";" {
		c.expression()
		c.emitf(c.spec.jumpIfZero, "FOR_END_"+id)
	}
	c.stream.match(";", "for")
	c.emitf(c.spec.jump, "FOR_THEN_"+id)
	c.emitLabel("FOR_ITER_" + id)
	if c.stream.peek().Text != ")" {
		c.expression()
	}
	c.emitf(c.spec.jump, "FOR_"+id)
	c.stream.match(")", "for")
	c.emitLabel("FOR_THEN_" + id)
	c.statement()
	c.emitf(c.spec.jump, "FOR_ITER_"+id)
	c.emitLabel("FOR_END_" + id)

	c.popBreakFrame(saved)
}

// switchStatement moves the scrutinee into the secondary register and
// jumps to a dispatch table emitted after the case bodies.  Cases
// fall through until an explicit break; the table compares the
// collected values in reverse collection order and falls back to the
// default label.
func (c *Compiler) switchStatement() {
	id := c.uniqueID()
	saved := c.pushBreakFrame("_SWITCH_END_", "", id, false)

	c.stream.match("switch", "switch")
	c.stream.match("(", "switch")
	c.expression()
	c.stream.match(")", "switch")
	c.emit(c.spec.moveToSecondary)
	c.emitf(c.spec.jump, "_SWITCH_TABLE_"+id)

	c.stream.match("{", "switch")
	var cases []string
	sawDefault := false
	for c.stream.peek().Text != "}" {
		t := c.stream.peek()
		switch t.Text {
		case "case":
			c.stream.next()
			v := c.stream.next()
			value := strings.TrimPrefix(v.Text, ":")
			if value == v.Text {
				c.stream.match(":", "switch")
			}
			cases = append(cases, value)
			c.emitLabel("_SWITCH_CASE_" + value + "_" + id)
		case "default", ":default":
			c.stream.next()
			if t.Text == "default" {
				c.stream.match(":", "switch")
			}
			sawDefault = true
			c.emitLabel("_SWITCH_DEFAULT_" + id)
		default:
			c.statement()
		}
	}
	c.stream.next()

	c.emitf(c.spec.jump, "_SWITCH_END_"+id)
	c.emitLabel("_SWITCH_TABLE_" + id)
	for _, v := range lo.Reverse(append([]string{}, cases...)) {
		c.emitf(c.spec.immediate, v)
		c.emitf(c.spec.jumpIfEqual, "_SWITCH_CASE_"+v+"_"+id)
	}
	c.emitf(c.spec.jump, "_SWITCH_DEFAULT_"+id)
	if !sawDefault {
		c.emitLabel("_SWITCH_DEFAULT_" + id)
	}
	c.emitLabel("_SWITCH_END_" + id)

	c.popBreakFrame(saved)
}

func (c *Compiler) asmStatement() {
	c.stream.match("asm", "asm")
	c.stream.match("(", "asm")
	for strings.HasPrefix(c.stream.peek().Text, `"`) {
		t := c.stream.next()
		c.emit(t.Text[1:len(t.Text)-1] + "\n")
	}
	c.stream.match(")", "asm")
	c.stream.match(";", "asm")
}

func (c *Compiler) gotoStatement() {
	c.stream.match("goto", "goto")
	label := c.stream.next()
	if !isIdentifierStart(label.Text[0]) {
		c.failAt(label, "goto requires a label name")
	}
	c.stream.match(";", "goto")
	c.emitf(c.spec.jump, label.Text)
}

func (c *Compiler) returnStatement() {
	c.stream.match("return", "return")
	if c.stream.peek().Text != ";" {
		c.expression()
	}
	c.stream.match(";", "return")
	c.emitFunctionExit()
}

// emitFunctionExit rewinds every live local and returns.  The pops go
// through the secondary register so the return value survives in the
// primary one.
func (c *Compiler) emitFunctionExit() {
	for _, sym := range c.fn.locals {
		for i := 0; i < c.wordsFor(sym.Type.Size); i++ {
			c.emit(c.spec.popSecondary)
		}
	}
	c.emit(c.spec.ret)
}

// rewindToBreakFrame pops the slots of every local declared since the
// enclosing loop or switch was entered.
func (c *Compiler) rewindToBreakFrame() {
	for _, sym := range c.fn.locals[c.breakFrame:] {
		for i := 0; i < c.wordsFor(sym.Type.Size); i++ {
			c.emit(c.spec.popSecondary)
		}
	}
}

func (c *Compiler) breakStatement() {
	at := c.stream.peek()
	c.stream.match("break", "break")
	c.stream.match(";", "break")
	if c.breakHead == "" {
		c.failAt(at, "break outside of a loop or switch")
	}
	c.rewindToBreakFrame()
	c.emitf(c.spec.jump, c.breakHead+c.breakID)
}

func (c *Compiler) continueStatement() {
	at := c.stream.peek()
	c.stream.match("continue", "continue")
	c.stream.match(";", "continue")
	if c.continueHead == "" {
		if c.breakHead != "" {
			c.failAt(at, "continue inside a switch")
		}
		c.failAt(at, "continue outside of a loop")
	}
	c.rewindToBreakFrame()
	c.emitf(c.spec.jump, c.continueHead+c.breakID)
}
