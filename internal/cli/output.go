package cli

import (
	"errors"
	"io"
	"os"
)

// Output is the sink a receiver writes to: a file, or stdout for "-".
type Output struct {
	io.Writer
	file *os.File
}

// CreateOutput opens path for writing. An existing file is refused
// unless overwrite is set.
func CreateOutput(path string, overwrite bool) (*Output, error) {
	if path == "-" {
		return &Output{Writer: os.Stdout}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	return &Output{Writer: file, file: file}, nil
}

// Finish closes the output. When the transfer failed the partial file is
// removed so a retry can create it again.
func (o *Output) Finish(transferErr error) error {
	if o.file == nil {
		return nil
	}

	err := o.file.Close()
	if transferErr != nil {
		return errors.Join(err, os.Remove(o.file.Name()))
	}
	return err
}
