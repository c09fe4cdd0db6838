package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	ExitSuccess  = 0
	ExitRejected = 1 // the dataset failed validation
	ExitError    = 2
)

// RejectedError reports a dataset that was read successfully but did not
// pass validation.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			os.Exit(ExitRejected)
		}
		os.Exit(ExitError)
	}
}
