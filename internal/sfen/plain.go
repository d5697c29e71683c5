package sfen

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

// Plain text form of a record, one per line:
//
//	fen;score;move;ply;result
func FormatPlain(rec *Record) (string, error) {
	var p, err = rec.Position()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v;%v;%v;%v;%v",
		p.String(), rec.Score, rec.Move, rec.Ply, rec.Result), nil
}

func ParsePlain(line string) (Record, error) {
	var fields = strings.Split(line, ";")
	if len(fields) != 5 {
		return Record{}, fmt.Errorf("bad plain record %q", line)
	}
	p, err := common.NewPositionFromFEN(fields[0])
	if err != nil {
		return Record{}, err
	}
	score, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("bad score %q: %w", fields[1], err)
	}
	var move = common.MoveEmpty
	if fields[2] != "0000" {
		move, err = common.ParseMove(fields[2])
		if err != nil {
			return Record{}, err
		}
	}
	ply, err := strconv.Atoi(fields[3])
	if err != nil {
		return Record{}, fmt.Errorf("bad ply %q: %w", fields[3], err)
	}
	result, err := strconv.Atoi(fields[4])
	if err != nil || result < -1 || result > 1 {
		return Record{}, fmt.Errorf("bad result %q", fields[4])
	}
	rec, err := NewRecord(&p, score, move, ply)
	if err != nil {
		return Record{}, err
	}
	rec.Result = int8(result)
	return rec, nil
}

// ConvertToPlain writes every record of input as text.
// Records whose board cannot be decoded are counted and skipped.
func ConvertToPlain(input, output string) (converted, skipped int, err error) {
	in, err := Open(input)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()
	f, err := os.Create(output)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	var w = bufio.NewWriter(f)
	var rec Record
	for in.Read(&rec) {
		line, err := FormatPlain(&rec)
		if err != nil {
			skipped++
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return converted, skipped, err
		}
		converted++
	}
	if err := in.Err(); err != nil {
		return converted, skipped, err
	}
	if err := w.Flush(); err != nil {
		return converted, skipped, err
	}
	return converted, skipped, f.Close()
}

// ConvertFromPlain parses a text file and appends its records to output.
func ConvertFromPlain(input, output string, format Format) (converted, skipped int, err error) {
	f, err := os.Open(input)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	out, err := Create(output, format)
	if err != nil {
		return 0, 0, err
	}
	var scanner = bufio.NewScanner(f)
	for scanner.Scan() {
		var line = strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := ParsePlain(line)
		if err != nil {
			skipped++
			continue
		}
		if err := out.Write(&rec); err != nil {
			out.Close()
			return converted, skipped, err
		}
		converted++
	}
	if err := scanner.Err(); err != nil {
		out.Close()
		return converted, skipped, err
	}
	return converted, skipped, out.Close()
}
