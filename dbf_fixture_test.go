package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// dbfFixture describes a table file written by writeDBF. Row values are
// encoded by field type: string for C and M, int or float64 for N, bool for
// L, time.Time for D and T, int for I. nil writes a blank field and []byte
// is copied verbatim.
type dbfFixture struct {
	fields  []Field
	rows    [][]any
	deleted map[int]bool // row indexes written with the deletion flag
}

const fixtureMemoBlock = 64

// writeDBF writes a Visual FoxPro style table (with a .fpt when any field is
// a memo) and returns its path.
func writeDBF(t *testing.T, dir, name string, fx dbfFixture) string {
	t.Helper()
	hasMemo := false
	recordLen := 1
	for _, f := range fx.fields {
		recordLen += f.Length
		if f.Type == "M" {
			hasMemo = true
		}
	}
	headerLen := dbfHeaderSize + dbfFieldSize*len(fx.fields) + 1

	var buf bytes.Buffer
	hdr := make([]byte, dbfHeaderSize)
	hdr[0] = 0x30
	hdr[1], hdr[2], hdr[3] = 124, 3, 5 // 2024-03-05
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(fx.rows)))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(recordLen))
	hdr[29] = 0x03 // cp1252
	buf.Write(hdr)
	for _, f := range fx.fields {
		d := make([]byte, dbfFieldSize)
		copy(d[:11], f.Name)
		d[11] = f.Type[0]
		d[16] = byte(f.Length)
		d[17] = byte(f.Decimals)
		buf.Write(d)
	}
	buf.WriteByte(dbfFieldTerm)

	var memo bytes.Buffer
	memo.Write(make([]byte, fptHeaderSize))
	enc := charmap.Windows1252.NewEncoder()

	for i, row := range fx.rows {
		if len(row) != len(fx.fields) {
			t.Fatalf("row %d has %d values for %d fields", i, len(row), len(fx.fields))
		}
		if fx.deleted[i] {
			buf.WriteByte(dbfDeletedRecord)
		} else {
			buf.WriteByte(dbfActiveRecord)
		}
		for j, f := range fx.fields {
			raw := encodeFixtureField(t, f, row[j], &memo, enc.String)
			if len(raw) != f.Length {
				t.Fatalf("row %d field %s encodes to %d bytes, want %d", i, f.Name, len(raw), f.Length)
			}
			buf.Write(raw)
		}
	}
	buf.WriteByte(dbfEOF)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if hasMemo {
		m := memo.Bytes()
		binary.BigEndian.PutUint32(m[0:4], uint32(len(m)/fixtureMemoBlock))
		binary.BigEndian.PutUint16(m[6:8], fixtureMemoBlock)
		memoPath := path[:len(path)-len(filepath.Ext(path))] + ".FPT"
		if err := os.WriteFile(memoPath, m, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func encodeFixtureField(t *testing.T, f Field, v any, memo *bytes.Buffer, encode func(string) (string, error)) []byte {
	t.Helper()
	if raw, ok := v.([]byte); ok {
		return raw
	}
	blank := bytes.Repeat([]byte{' '}, f.Length)
	switch f.Type {
	case "C":
		if v == nil {
			return blank
		}
		s, err := encode(v.(string))
		if err != nil {
			t.Fatalf("encode %q: %v", v, err)
		}
		return []byte(fmt.Sprintf("%-*s", f.Length, s))
	case "N":
		switch n := v.(type) {
		case nil:
			return blank
		case int:
			return []byte(fmt.Sprintf("%*d", f.Length, n))
		case float64:
			return []byte(fmt.Sprintf("%*s", f.Length, strconv.FormatFloat(n, 'f', f.Decimals, 64)))
		}
	case "L":
		switch b := v.(type) {
		case nil:
			return []byte("?")
		case bool:
			if b {
				return []byte("T")
			}
			return []byte("F")
		}
	case "D":
		if v == nil {
			return blank
		}
		return []byte(v.(time.Time).Format("20060102"))
	case "T":
		out := make([]byte, 8)
		if v == nil {
			return out
		}
		tm := v.(time.Time)
		day := tm.Unix()/86400 + julianUnixEpochDay
		ms := (tm.Unix() % 86400) * 1000
		binary.LittleEndian.PutUint32(out[:4], uint32(day))
		binary.LittleEndian.PutUint32(out[4:], uint32(ms))
		return out
	case "I":
		out := make([]byte, 4)
		if v != nil {
			binary.LittleEndian.PutUint32(out, uint32(int32(v.(int))))
		}
		return out
	case "M":
		out := make([]byte, 4)
		if v == nil {
			return out
		}
		s, err := encode(v.(string))
		if err != nil {
			t.Fatalf("encode %q: %v", v, err)
		}
		block := memo.Len() / fixtureMemoBlock
		hdr := make([]byte, 8)
		binary.BigEndian.PutUint32(hdr[:4], fptTypeText)
		binary.BigEndian.PutUint32(hdr[4:], uint32(len(s)))
		memo.Write(hdr)
		memo.WriteString(s)
		if pad := memo.Len() % fixtureMemoBlock; pad != 0 {
			memo.Write(make([]byte, fixtureMemoBlock-pad))
		}
		binary.LittleEndian.PutUint32(out, uint32(block))
		return out
	}
	t.Fatalf("fixture cannot encode %T for field type %s", v, f.Type)
	return nil
}

// numField and charField build fixture field descriptors.
func numField(name string, length int) Field {
	return Field{Name: name, Type: "N", Length: length}
}

func charField(name string, length int) Field {
	return Field{Name: name, Type: "C", Length: length}
}
