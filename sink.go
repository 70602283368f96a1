package netexp

// sink.go holds the destination of the sweep summary.  No file handle is kept
// between calls: the header write truncates, each row write appends, and each
// call opens, writes and closes the file

import (
	"fmt"
	"os"
)

// ResultSink accepts the summary header once and then one row per run
type ResultSink interface {
	WriteHeader(line string) error
	WriteRow(line string) error
}

// SinkError describes a failed write to a sink
type SinkError struct {
	Path string
	Op   string
	Err  error
}

func (se *SinkError) Error() string {
	return fmt.Sprintf("result sink %s: %s: %v", se.Path, se.Op, se.Err)
}

func (se *SinkError) Unwrap() error {
	return se.Err
}

// CSVSink writes the summary as lines of a csv file
type CSVSink struct {
	Path string
}

// CreateCSVSink is a constructor.  Nothing is written until WriteHeader
func CreateCSVSink(path string) *CSVSink {
	cs := new(CSVSink)
	cs.Path = path
	return cs
}

// WriteHeader replaces whatever the file held with the header line
func (cs *CSVSink) WriteHeader(line string) error {
	return cs.writeLine(line, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, "write header")
}

// WriteRow appends one line to the file
func (cs *CSVSink) WriteRow(line string) error {
	return cs.writeLine(line, os.O_CREATE|os.O_WRONLY|os.O_APPEND, "write row")
}

func (cs *CSVSink) writeLine(line string, flag int, op string) error {
	f, err := os.OpenFile(cs.Path, flag, 0o644)
	if err != nil {
		return &SinkError{Path: cs.Path, Op: op, Err: err}
	}
	_, werr := f.WriteString(line + "\n")
	cerr := f.Close()
	if werr != nil {
		return &SinkError{Path: cs.Path, Op: op, Err: werr}
	}
	if cerr != nil {
		return &SinkError{Path: cs.Path, Op: op, Err: cerr}
	}
	return nil
}
