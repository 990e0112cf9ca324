package m2c

import "fmt"

// CompileError is the error produced when the compiler gives up on
// its input.  The first one raised aborts the whole compile; there is
// no recovery and no partial output.
type CompileError struct {
	File    string
	Line    int
	Message string
}

// Error returns the human readable representation of a compile error
func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// abort raises a CompileError through the panic channel.  The public
// entry points recover it and hand it back as a plain error, so the
// productions themselves never thread error returns around.
func abort(file string, line int, format string, args ...interface{}) {
	panic(&CompileError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// recoverCompileError converts a panicking *CompileError back into a
// returned error.  Any other panic keeps propagating.
func recoverCompileError(err *error) {
	if r := recover(); r != nil {
		ce, ok := r.(*CompileError)
		if !ok {
			panic(r)
		}
		*err = ce
	}
}
