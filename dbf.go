package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

const (
	dbfHeaderSize      = 32
	dbfFieldSize       = 32
	dbfFieldTerm       = 0x0d
	dbfEOF             = 0x1a
	dbfActiveRecord    = ' '
	dbfDeletedRecord   = '*'
	julianUnixEpochDay = 2440588
)

// recordError reports a legacy record whose field data could not be decoded.
// Only that record is affected.
type recordError struct {
	Table string
	Recno int
	Field string
	Raw   string
	Err   error
}

func (e *recordError) Error() string {
	return fmt.Sprintf("%s record %d field %s (%q): %v", e.Table, e.Recno, e.Field, e.Raw, e.Err)
}

func (e *recordError) Unwrap() error { return e.Err }

// errUnrecoverable marks failures that stop the rest of a project.
var errUnrecoverable = errors.New("unrecoverable legacy file error")

// dbfTable reads a dBase III / FoxPro / Visual FoxPro table sequentially.
type dbfTable struct {
	path       string
	name       string
	file       *os.File
	r          *bufio.Reader
	version    byte
	updated    time.Time
	numRecords int
	headerLen  int
	recordLen  int
	fields     []Field
	encName    string
	dec        *encoding.Decoder
	memo       *memoFile
	buf        []byte
	read       int
	deleted    int
}

// openDBF opens a table and parses its header. fallbackEncoding is used when
// the header's language driver byte is not recognized.
func openDBF(path, fallbackEncoding string) (*dbfTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &dbfTable{
		path: path,
		name: strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		file: f,
	}
	if err := t.readHeader(fallbackEncoding); err != nil {
		f.Close()
		return nil, err
	}
	if t.needsMemo() {
		memoPath, ok := findSibling(path, ".fpt", ".dbt")
		if ok {
			m, err := openMemo(memoPath)
			if err != nil {
				f.Close()
				return nil, err
			}
			t.memo = m
		} else {
			logWarnf("    WARN: %s has memo fields but no memo file; memo values load as NULL", t.name)
		}
	}
	if _, err := f.Seek(int64(t.headerLen), io.SeekStart); err != nil {
		t.Close()
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	t.r = bufio.NewReaderSize(f, 64*1024)
	t.buf = make([]byte, t.recordLen)
	return t, nil
}

func (t *dbfTable) readHeader(fallbackEncoding string) error {
	fixed := make([]byte, dbfHeaderSize)
	if _, err := io.ReadFull(t.file, fixed); err != nil {
		return fmt.Errorf("read %s header: %w", t.path, err)
	}
	t.version = fixed[0]
	if fixed[2] >= 1 && fixed[2] <= 12 && fixed[3] >= 1 && fixed[3] <= 31 {
		t.updated = time.Date(1900+int(fixed[1]), time.Month(fixed[2]), int(fixed[3]), 0, 0, 0, 0, time.UTC)
	}
	t.numRecords = int(binary.LittleEndian.Uint32(fixed[4:8]))
	t.headerLen = int(binary.LittleEndian.Uint16(fixed[8:10]))
	t.recordLen = int(binary.LittleEndian.Uint16(fixed[10:12]))
	if t.headerLen < dbfHeaderSize+1 || t.recordLen < 1 {
		return fmt.Errorf("%s: invalid header (header length %d, record length %d)", t.path, t.headerLen, t.recordLen)
	}

	encName, enc, err := tableEncoding(fixed[29], fallbackEncoding)
	if err != nil {
		return fmt.Errorf("%s: %w", t.path, err)
	}
	t.encName = encName
	t.dec = enc.NewDecoder()

	desc := make([]byte, t.headerLen-dbfHeaderSize)
	if _, err := io.ReadFull(t.file, desc); err != nil {
		return fmt.Errorf("read %s field descriptors: %w", t.path, err)
	}
	width := 1 // deletion flag
	for off := 0; off+dbfFieldSize <= len(desc) && desc[off] != dbfFieldTerm; off += dbfFieldSize {
		d := desc[off : off+dbfFieldSize]
		nameBytes := d[:11]
		if i := bytes.IndexByte(nameBytes, 0); i >= 0 {
			nameBytes = nameBytes[:i]
		}
		f := Field{
			Name:     strings.TrimSpace(string(nameBytes)),
			Type:     string(d[11]),
			Length:   int(d[16]),
			Decimals: int(d[17]),
		}
		t.fields = append(t.fields, f)
		width += f.Length
	}
	if len(t.fields) == 0 {
		return fmt.Errorf("%s: no field descriptors", t.path)
	}
	if width > t.recordLen {
		return fmt.Errorf("%s: fields span %d bytes but records are %d bytes", t.path, width, t.recordLen)
	}
	return nil
}

func (t *dbfTable) needsMemo() bool {
	for _, f := range t.fields {
		if isMemoField(f) {
			return true
		}
	}
	return false
}

func isMemoField(f Field) bool {
	switch f.Type {
	case "M", "G", "P":
		return true
	case "B":
		return f.Length == 10 // dBase binary memo; VFP doubles are 8 bytes
	}
	return false
}

func (t *dbfTable) Name() string     { return t.name }
func (t *dbfTable) Fields() []Field  { return t.fields }
func (t *dbfTable) Deleted() int     { return t.deleted }
func (t *dbfTable) RecordCount() int { return t.numRecords }

// Next returns the next live record, or io.EOF after the last one. A
// *recordError means only that record is bad; any other error wraps
// errUnrecoverable.
func (t *dbfTable) Next() (Record, error) {
	for t.read < t.numRecords {
		n, err := io.ReadFull(t.r, t.buf)
		if err == io.EOF || (n > 0 && t.buf[0] == dbfEOF) {
			// record count in the header overstates the data
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s record %d: %v", errUnrecoverable, t.name, t.read+1, err)
		}
		t.read++
		switch t.buf[0] {
		case dbfActiveRecord:
			return t.decode(t.read)
		case dbfDeletedRecord:
			t.deleted++
		case dbfEOF:
			return nil, io.EOF
		}
	}
	return nil, io.EOF
}

func (t *dbfTable) decode(recno int) (Record, error) {
	rec := make(Record, len(t.fields))
	pos := 1
	for _, f := range t.fields {
		data := t.buf[pos : pos+f.Length]
		pos += f.Length
		v, err := t.decodeField(f, data)
		if err != nil {
			return nil, &recordError{Table: t.name, Recno: recno, Field: f.Name, Raw: string(data), Err: err}
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func (t *dbfTable) decodeField(f Field, data []byte) (Value, error) {
	switch f.Type {
	case "C":
		return t.decodeText(bytes.TrimRight(data, "\x00 "))
	case "N", "F":
		return decodeNumber(data)
	case "L":
		return decodeLogical(data)
	case "D":
		return decodeDate(data)
	case "T":
		return decodeVFPDateTime(data)
	case "I":
		if len(data) != 4 {
			return nullValue, fmt.Errorf("integer field is %d bytes", len(data))
		}
		return intValue(int64(int32(binary.LittleEndian.Uint32(data)))), nil
	case "Y":
		if len(data) != 8 {
			return nullValue, fmt.Errorf("currency field is %d bytes", len(data))
		}
		return floatValue(float64(int64(binary.LittleEndian.Uint64(data))) / 10000), nil
	case "0":
		var n uint64
		for i := min(len(data), 8) - 1; i >= 0; i-- {
			n = n<<8 | uint64(data[i])
		}
		return intValue(int64(n)), nil
	case "B":
		if f.Length == 8 {
			return floatValue(math.Float64frombits(binary.LittleEndian.Uint64(data))), nil
		}
		return t.decodeMemo(f, data)
	case "M", "G", "P":
		return t.decodeMemo(f, data)
	default:
		return t.decodeText(bytes.TrimRight(data, "\x00 "))
	}
}

func (t *dbfTable) decodeText(b []byte) (Value, error) {
	s, err := t.dec.String(string(b))
	if err != nil {
		return nullValue, err
	}
	return textValue(s), nil
}

func decodeNumber(data []byte) (Value, error) {
	s := strings.TrimSpace(strings.Trim(string(data), "\x00"))
	if s == "" {
		return nullValue, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return intValue(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nullValue, fmt.Errorf("invalid number %q", s)
	}
	return floatValue(f), nil
}

func decodeLogical(data []byte) (Value, error) {
	if len(data) == 0 {
		return nullValue, nil
	}
	switch data[0] {
	case 'T', 't', 'Y', 'y':
		return boolValue(true), nil
	case 'F', 'f', 'N', 'n':
		return boolValue(false), nil
	case '?', ' ', 0:
		return nullValue, nil
	default:
		return nullValue, fmt.Errorf("invalid logical %q", data[0])
	}
}

func decodeDate(data []byte) (Value, error) {
	s := strings.TrimSpace(strings.Trim(string(data), "\x00"))
	if s == "" || strings.Trim(s, "0") == "" {
		return nullValue, nil
	}
	d, err := time.Parse("20060102", s)
	if err != nil {
		return nullValue, fmt.Errorf("invalid date %q", s)
	}
	return dateValue(d), nil
}

// decodeVFPDateTime decodes a Visual FoxPro datetime: a little-endian Julian
// day number followed by milliseconds since midnight.
func decodeVFPDateTime(data []byte) (Value, error) {
	if len(data) != 8 {
		return nullValue, fmt.Errorf("datetime field is %d bytes", len(data))
	}
	day := int64(binary.LittleEndian.Uint32(data[:4]))
	ms := int64(binary.LittleEndian.Uint32(data[4:]))
	if day == 0 {
		return nullValue, nil
	}
	t := time.Unix((day-julianUnixEpochDay)*86400, 0).UTC().Add(time.Duration(ms) * time.Millisecond)
	return dateTimeValue(t), nil
}

func (t *dbfTable) decodeMemo(f Field, data []byte) (Value, error) {
	var block int64
	if len(data) == 4 {
		block = int64(binary.LittleEndian.Uint32(data))
	} else {
		s := strings.TrimSpace(strings.Trim(string(data), "\x00"))
		if s == "" {
			return nullValue, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nullValue, fmt.Errorf("invalid memo block %q", s)
		}
		block = n
	}
	if block == 0 || t.memo == nil {
		return nullValue, nil
	}
	raw, kind, err := t.memo.read(block)
	if err != nil {
		return nullValue, err
	}
	if f.Type == "M" && kind == memoText {
		return t.decodeText(raw)
	}
	return bytesValue(raw), nil
}

// describe returns the header summary shown in verbose mode. Deleted records
// are only known once the table is read, so they are logged with the load
// totals instead.
func (t *dbfTable) describe() []string {
	memo := ""
	if t.memo != nil {
		memo = t.memo.path
	}
	updated := ""
	if !t.updated.IsZero() {
		updated = t.updated.Format(dateLayout)
	}
	lines := []string{
		"Name: " + t.name,
		"Memo File: " + memo,
		fmt.Sprintf("DB Version: 0x%02x", t.version),
		fmt.Sprintf("Records: %d", t.RecordCount()),
		"Last Updated: " + updated,
		"Character Encoding: " + t.encName,
		"Fields:",
	}
	for _, f := range t.fields {
		lines = append(lines, fmt.Sprintf("  %s (%s %d)", f.Name, f.Type, f.Length))
	}
	return lines
}

func (t *dbfTable) Close() error {
	var errs []error
	if t.memo != nil {
		errs = append(errs, t.memo.Close())
	}
	if t.file != nil {
		errs = append(errs, t.file.Close())
	}
	return errors.Join(errs...)
}

// findSibling looks for a file next to path with the same stem and one of
// the given extensions, ignoring case.
func findSibling(path string, exts ...string) (string, bool) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, ext := range exts {
		want := strings.ToUpper(stem + ext)
		for _, e := range entries {
			if !e.IsDir() && strings.ToUpper(e.Name()) == want {
				return filepath.Join(dir, e.Name()), true
			}
		}
	}
	return "", false
}
