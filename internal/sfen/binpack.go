package sfen

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/klauspost/compress/zstd"
)

// Packed game format: a sequence of blocks
//   - "SFPK"
//   - uint32 record count
//   - uint32 payload length
//   - zstd payload
//
// Inside the payload every record starts with a flags byte.
// The board is stored XOR the previous board and the score as a varint delta.
// A continuation record (next ply of the same game, result flipped) omits ply and result.
var binpackMagic = []byte("SFPK")

const (
	binpackHeaderSize   = 12
	binpackBlockRecords = 4096
	binpackMaxPayload   = 64 << 20

	flagContinuation = 1
)

var errBadBlock = errors.New("sfen: corrupt binpack block")

type binpackWriter struct {
	file    io.WriteCloser
	w       *bufio.Writer
	encoder *zstd.Encoder
	pending []Record
	payload []byte
	block   []byte
}

func newBinpackWriter(file io.WriteCloser) (*binpackWriter, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &binpackWriter{
		file:    file,
		w:       bufio.NewWriterSize(file, 1<<16),
		encoder: encoder,
	}, nil
}

func (bw *binpackWriter) Write(rec *Record) error {
	if bw.w == nil {
		return errClosed
	}
	bw.pending = append(bw.pending, *rec)
	return bw.maybeFlush()
}

// WriteMany keeps the batch in one block unless the block is already full.
func (bw *binpackWriter) WriteMany(recs []Record) error {
	if bw.w == nil {
		return errClosed
	}
	bw.pending = append(bw.pending, recs...)
	return bw.maybeFlush()
}

func (bw *binpackWriter) maybeFlush() error {
	if len(bw.pending) < binpackBlockRecords {
		return nil
	}
	return bw.flushBlock()
}

func (bw *binpackWriter) flushBlock() error {
	if len(bw.pending) == 0 {
		return nil
	}
	bw.payload = encodeRecords(bw.payload[:0], bw.pending)
	bw.block = bw.encoder.EncodeAll(bw.payload, bw.block[:0])

	var header [binpackHeaderSize]byte
	copy(header[:], binpackMagic)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(bw.pending)))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(bw.block)))
	if _, err := bw.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := bw.w.Write(bw.block); err != nil {
		return err
	}
	bw.pending = bw.pending[:0]
	return nil
}

func (bw *binpackWriter) Close() error {
	if bw.w == nil {
		return errClosed
	}
	var err = bw.flushBlock()
	if ferr := bw.w.Flush(); err == nil {
		err = ferr
	}
	bw.w = nil
	bw.encoder.Close()
	if cerr := bw.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeRecords(buf []byte, recs []Record) []byte {
	var prev Record
	for i := range recs {
		var rec = &recs[i]
		var flags byte
		if i > 0 && rec.Ply == prev.Ply+1 && rec.Result == -prev.Result {
			flags |= flagContinuation
		}
		buf = append(buf, flags)
		for j := range rec.Board {
			buf = append(buf, rec.Board[j]^prev.Board[j])
		}
		buf = binary.AppendVarint(buf, int64(rec.Score)-int64(prev.Score))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(rec.Move))
		if flags&flagContinuation == 0 {
			buf = binary.AppendUvarint(buf, uint64(rec.Ply))
			buf = append(buf, byte(rec.Result))
		}
		prev = *rec
	}
	return buf
}

func decodeRecords(payload []byte, count int, recs []Record) ([]Record, error) {
	var prev Record
	var pos = 0
	for i := 0; i < count; i++ {
		if pos+1+common.PackedBoardSize > len(payload) {
			return recs, errBadBlock
		}
		var flags = payload[pos]
		pos++
		var rec Record
		for j := range rec.Board {
			rec.Board[j] = payload[pos+j] ^ prev.Board[j]
		}
		pos += common.PackedBoardSize
		delta, n := binary.Varint(payload[pos:])
		if n <= 0 {
			return recs, errBadBlock
		}
		pos += n
		rec.Score = int16(int64(prev.Score) + delta)
		if pos+2 > len(payload) {
			return recs, errBadBlock
		}
		rec.Move = common.Move(binary.LittleEndian.Uint16(payload[pos:]))
		pos += 2
		if flags&flagContinuation != 0 {
			rec.Ply = prev.Ply + 1
			rec.Result = -prev.Result
		} else {
			ply, n := binary.Uvarint(payload[pos:])
			if n <= 0 || pos+n >= len(payload) {
				return recs, errBadBlock
			}
			pos += n
			rec.Ply = uint16(ply)
			rec.Result = int8(payload[pos])
			pos++
		}
		recs = append(recs, rec)
		prev = rec
	}
	return recs, nil
}

type binpackReader struct {
	r       io.Reader
	closer  io.Closer
	decoder *zstd.Decoder
	block   []byte
	payload []byte
	recs    []Record
	index   int
	eof     bool
	err     error
}

func newBinpackReader(r io.Reader, c io.Closer) (*binpackReader, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		if c != nil {
			c.Close()
		}
		return nil, err
	}
	return &binpackReader{
		r:       r,
		closer:  c,
		decoder: decoder,
	}, nil
}

func (br *binpackReader) Read(rec *Record) bool {
	for br.index >= len(br.recs) {
		if br.eof || !br.nextBlock() {
			return false
		}
	}
	*rec = br.recs[br.index]
	br.index++
	return true
}

func (br *binpackReader) nextBlock() bool {
	br.recs = br.recs[:0]
	br.index = 0
	var header [binpackHeaderSize]byte
	if !br.readFull(header[:]) {
		return false
	}
	if string(header[:4]) != string(binpackMagic) {
		br.fail(fmt.Errorf("%w: bad magic", errBadBlock))
		return false
	}
	var count = int(binary.LittleEndian.Uint32(header[4:]))
	var size = int(binary.LittleEndian.Uint32(header[8:]))
	if size > binpackMaxPayload {
		br.fail(fmt.Errorf("%w: block size %v", errBadBlock, size))
		return false
	}
	if cap(br.block) < size {
		br.block = make([]byte, size)
	}
	br.block = br.block[:size]
	if !br.readFull(br.block) {
		return false
	}
	payload, err := br.decoder.DecodeAll(br.block, br.payload[:0])
	if err != nil {
		br.fail(fmt.Errorf("%w: %v", errBadBlock, err))
		return false
	}
	br.payload = payload
	recs, err := decodeRecords(payload, count, br.recs)
	br.recs = recs
	if err != nil {
		br.fail(err)
	}
	return len(br.recs) != 0
}

// readFull treats a short read at the end of the data as a silent end of stream.
func (br *binpackReader) readFull(buf []byte) bool {
	_, err := io.ReadFull(br.r, buf)
	if err != nil {
		br.eof = true
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			br.err = err
		}
		return false
	}
	return true
}

func (br *binpackReader) fail(err error) {
	br.eof = true
	br.err = err
}

func (br *binpackReader) Eof() bool {
	return br.eof && br.index >= len(br.recs)
}

func (br *binpackReader) Err() error {
	return br.err
}

func (br *binpackReader) Close() error {
	br.eof = true
	br.decoder.Close()
	if br.closer == nil {
		return nil
	}
	return br.closer.Close()
}
