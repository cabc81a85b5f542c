package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type memoKind int

const (
	memoBinary memoKind = iota
	memoText
)

const (
	dbtBlockSize  = 512
	memoMaxLength = 64 << 20
	fptHeaderSize = 512
	fptTypeText   = 1
)

// memoFile resolves memo block pointers against a FoxPro .fpt or dBase .dbt file.
type memoFile struct {
	path      string
	f         *os.File
	fpt       bool
	blockSize int64
}

func openMemo(path string) (*memoFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open memo %s: %w", path, err)
	}
	m := &memoFile{
		path:      path,
		f:         f,
		fpt:       strings.EqualFold(filepath.Ext(path), ".fpt"),
		blockSize: dbtBlockSize,
	}
	hdr := make([]byte, 32)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("read memo header %s: %w", path, err)
	}
	if m.fpt {
		if bs := int64(binary.BigEndian.Uint16(hdr[6:8])); bs > 0 {
			m.blockSize = bs
		}
	} else if hdr[16] != 0x03 { // dBase IV keeps a configurable block size
		if bs := int64(binary.LittleEndian.Uint16(hdr[20:22])); bs > 0 {
			m.blockSize = bs
		}
	}
	return m, nil
}

// read returns the data stored at the given block number.
func (m *memoFile) read(block int64) ([]byte, memoKind, error) {
	off := block * m.blockSize
	if m.fpt {
		return m.readFPT(off)
	}
	return m.readDBT(off)
}

func (m *memoFile) readFPT(off int64) ([]byte, memoKind, error) {
	if off < fptHeaderSize {
		return nil, memoBinary, fmt.Errorf("memo block offset %d inside header", off)
	}
	hdr := make([]byte, 8)
	if _, err := m.f.ReadAt(hdr, off); err != nil {
		return nil, memoBinary, fmt.Errorf("read memo block at %d: %w", off, err)
	}
	typ := binary.BigEndian.Uint32(hdr[:4])
	n := int64(binary.BigEndian.Uint32(hdr[4:]))
	if n > memoMaxLength {
		return nil, memoBinary, fmt.Errorf("memo block at %d claims %d bytes", off, n)
	}
	data := make([]byte, n)
	if _, err := m.f.ReadAt(data, off+8); err != nil && err != io.EOF {
		return nil, memoBinary, fmt.Errorf("read memo data at %d: %w", off, err)
	}
	kind := memoBinary
	if typ == fptTypeText {
		kind = memoText
	}
	return data, kind, nil
}

func (m *memoFile) readDBT(off int64) ([]byte, memoKind, error) {
	head := make([]byte, 8)
	if _, err := m.f.ReadAt(head, off); err != nil && err != io.EOF {
		return nil, memoBinary, fmt.Errorf("read memo block at %d: %w", off, err)
	}
	// dBase IV block: FF FF 08 00 followed by the length including these 8 bytes
	if head[0] == 0xff && head[1] == 0xff && head[2] == 0x08 && head[3] == 0x00 {
		n := int64(binary.LittleEndian.Uint32(head[4:])) - 8
		if n < 0 || n > memoMaxLength {
			return nil, memoBinary, fmt.Errorf("memo block at %d claims %d bytes", off, n)
		}
		data := make([]byte, n)
		if _, err := m.f.ReadAt(data, off+8); err != nil && err != io.EOF {
			return nil, memoBinary, fmt.Errorf("read memo data at %d: %w", off, err)
		}
		return data, memoText, nil
	}

	// dBase III: text runs until the first 0x1A
	var out []byte
	buf := make([]byte, m.blockSize)
	for pos := off; int64(len(out)) < memoMaxLength; pos += m.blockSize {
		n, err := m.f.ReadAt(buf, pos)
		if i := bytes.IndexByte(buf[:n], dbfEOF); i >= 0 {
			return append(out, buf[:i]...), memoText, nil
		}
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, memoText, nil
		}
		if err != nil {
			return nil, memoBinary, fmt.Errorf("read memo data at %d: %w", pos, err)
		}
	}
	return out, memoText, nil
}

func (m *memoFile) Close() error {
	return m.f.Close()
}
