package m2c

import (
	"fmt"
	"strings"
)

// sectionWriter accumulates assembly fragments for one of the three
// output sections.  Fragments are appended in source order and
// serialized once at the end of the compile.
type sectionWriter struct {
	buffer *strings.Builder
	last   string
}

func newSectionWriter() *sectionWriter {
	return &sectionWriter{buffer: &strings.Builder{}}
}

func (o *sectionWriter) write(s string) {
	if s == "" {
		return
	}
	o.buffer.WriteString(s)
	o.last = s
}

func (o *sectionWriter) writef(format string, args ...interface{}) {
	o.write(fmt.Sprintf(format, args...))
}

// lastFragment returns the most recent fragment, used by the function
// trailer to avoid emitting a return after an explicit one.
func (o *sectionWriter) lastFragment() string {
	return o.last
}

func (o *sectionWriter) output() string {
	return o.buffer.String()
}

// serializeOutput assembles the final text: the three labeled
// sections in their fixed order, terminated by the :STACK label the
// downstream assembler expects.
func serializeOutput(code, globals, strs *sectionWriter) string {
	out := &strings.Builder{}
	out.WriteString("# Core program\n")
	out.WriteString(code.output())
	out.WriteString("\n# Program global variables\n")
	out.WriteString(globals.output())
	out.WriteString("\n# Program strings\n")
	out.WriteString(strs.output())
	out.WriteString("\n:STACK\n")
	return out.String()
}
