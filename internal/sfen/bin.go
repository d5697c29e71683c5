package sfen

import (
	"bufio"
	"errors"
	"io"
)

type binWriter struct {
	file io.WriteCloser
	w    *bufio.Writer
	buf  [RecordSize]byte
}

func newBinWriter(file io.WriteCloser) *binWriter {
	return &binWriter{
		file: file,
		w:    bufio.NewWriterSize(file, 1<<16),
	}
}

func (bw *binWriter) Write(rec *Record) error {
	if bw.w == nil {
		return errClosed
	}
	rec.Put(bw.buf[:])
	_, err := bw.w.Write(bw.buf[:])
	return err
}

func (bw *binWriter) WriteMany(recs []Record) error {
	for i := range recs {
		if err := bw.Write(&recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (bw *binWriter) Close() error {
	if bw.w == nil {
		return errClosed
	}
	var err = bw.w.Flush()
	bw.w = nil
	if cerr := bw.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type binReader struct {
	r      io.Reader
	closer io.Closer
	buf    [RecordSize]byte
	eof    bool
	err    error
}

func newBinReader(r io.Reader, c io.Closer) *binReader {
	if _, ok := r.(*bufio.Reader); !ok {
		r = bufio.NewReaderSize(r, 1<<16)
	}
	return &binReader{r: r, closer: c}
}

func (br *binReader) Read(rec *Record) bool {
	if br.eof {
		return false
	}
	_, err := io.ReadFull(br.r, br.buf[:])
	if err != nil {
		br.eof = true
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			br.err = err
		}
		return false
	}
	rec.Get(br.buf[:])
	return true
}

func (br *binReader) Eof() bool {
	return br.eof
}

func (br *binReader) Err() error {
	return br.err
}

func (br *binReader) Close() error {
	br.eof = true
	if br.closer == nil {
		return nil
	}
	return br.closer.Close()
}
