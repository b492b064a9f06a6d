//go:build llama

package engine

// Link against libllama next to the binary: rpath $ORIGIN at run time and
// ./bin at link time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
