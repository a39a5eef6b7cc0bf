package cube

import (
	"io"
	"log"
)

// Debug discards its output unless a caller redirects it with
// SetOutput (nothing in this module does); every package in this
// module logs diagnostic detail through it rather than through ad-hoc
// fmt.Println calls.
var Debug = log.New(io.Discard, "[debug] ", log.Ltime|log.Lshortfile|log.Lmicroseconds)
