/*
Package closer contains a helper function for not losing deferred errors
*/
package closer

import "io"

// ErrorHandler closes c and, when *in is still nil, stores the close error in it.
// It is meant to be deferred against a named error return.
func ErrorHandler(c io.Closer, in *error) {
	cerr := c.Close()
	if *in == nil {
		*in = cerr
	}
}
