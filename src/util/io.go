package util

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"
)

// ---------------------
// ----- Functions -----
// ---------------------

// ReadSource reads source code from file or stdin.
// If the Options structure holds a string for source the file will be opened and read.
// Else the function waits for a short period for input on stdin. If no input on stdin is
// provided the function returns an error.
//
// This compiler's stages run one after another in a single goroutine, so
// unlike this project's other frontend there is no concurrent writer to
// coordinate output with: a caller that wants the result written to a file
// just opens the file and writes to it directly.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		b, err := os.ReadFile(opt.Src)
		return string(b), err
	}

	c := make(chan string)
	cerr := make(chan error)

	go func(c chan string, cerr chan error) {
		defer close(c)
		defer close(cerr)
		reader := bufio.NewReader(os.Stdin)
		text, err := reader.ReadString(0)
		if err == nil || (err == io.EOF && text != "") {
			c <- text
		} else {
			cerr <- err
		}
	}(c, cerr)

	select {
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("expected input from stdin, got none")
	case s := <-c:
		return s, nil
	case err := <-cerr:
		return "", err
	}
}
