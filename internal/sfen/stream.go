package sfen

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Format int

const (
	FormatBin Format = iota
	FormatBinpack
)

func (f Format) String() string {
	switch f {
	case FormatBin:
		return "bin"
	case FormatBinpack:
		return "binpack"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "bin", "":
		return FormatBin, nil
	case "binpack":
		return FormatBinpack, nil
	}
	return FormatBin, fmt.Errorf("unknown sfen format %q", s)
}

// Extension returns the conventional file extension of the format.
func (f Format) Extension() string {
	if f == FormatBinpack {
		return ".binpack"
	}
	return ".bin"
}

type OutputStream interface {
	Write(rec *Record) error
	WriteMany(recs []Record) error
	Close() error
}

// InputStream yields records until Read returns false.
// A truncated record or block at the end of the data is dropped silently.
type InputStream interface {
	Read(rec *Record) bool
	Eof() bool
	// Err returns the I/O error that ended the stream, if any.
	Err() error
	Close() error
}

var errClosed = errors.New("sfen: stream closed")

// Create opens path for appending records in the given format.
func Create(path string, format Format) (OutputStream, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f, format)
}

func NewWriter(w io.WriteCloser, format Format) (OutputStream, error) {
	switch format {
	case FormatBin:
		return newBinWriter(w), nil
	case FormatBinpack:
		return newBinpackWriter(w)
	}
	w.Close()
	return nil, fmt.Errorf("unknown sfen format %v", format)
}

// Open opens a record file. Packed files are recognised by the .binpack extension or by the block magic.
func Open(path string) (InputStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var br = bufio.NewReaderSize(f, 1<<16)
	var format = FormatBin
	if strings.EqualFold(filepath.Ext(path), ".binpack") {
		format = FormatBinpack
	} else if magic, _ := br.Peek(len(binpackMagic)); bytes.Equal(magic, binpackMagic) {
		format = FormatBinpack
	}
	return NewReader(br, f, format)
}

func NewReader(r io.Reader, c io.Closer, format Format) (InputStream, error) {
	switch format {
	case FormatBin:
		return newBinReader(r, c), nil
	case FormatBinpack:
		return newBinpackReader(r, c)
	}
	return nil, fmt.Errorf("unknown sfen format %v", format)
}

// ReadAll loads every complete record of a file.
func ReadAll(path string) ([]Record, error) {
	input, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	var result []Record
	var rec Record
	for input.Read(&rec) {
		result = append(result, rec)
	}
	return result, input.Err()
}

// WriteAll writes records to a new file, truncating an existing one.
func WriteAll(path string, format Format, recs []Record) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	output, err := Create(path, format)
	if err != nil {
		return err
	}
	if err := output.WriteMany(recs); err != nil {
		output.Close()
		return err
	}
	return output.Close()
}

// CountRecords returns the number of complete records of a flat file from its size.
func CountRecords(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size() / RecordSize, nil
}

// IsFlat reports whether input reads fixed size records, so that the record count follows from the file size.
func IsFlat(input InputStream) bool {
	var _, ok = input.(*binReader)
	return ok
}
