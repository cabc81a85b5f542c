package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// languageDrivers maps the DBF header language driver byte to its code page.
var languageDrivers = map[byte]string{
	0x01: "cp437",
	0x02: "cp850",
	0x03: "cp1252",
	0x04: "mac-roman",
	0x57: "cp1252",
	0x58: "cp1252",
	0x59: "cp1252",
	0x64: "cp852",
	0x65: "cp866",
	0x66: "cp865",
	0xc8: "cp1250",
	0xc9: "cp1251",
	0xca: "cp1254",
	0xcb: "cp1253",
	0xcc: "cp1257",
}

var encodingsByName = map[string]encoding.Encoding{
	"cp437":     charmap.CodePage437,
	"cp850":     charmap.CodePage850,
	"cp852":     charmap.CodePage852,
	"cp865":     charmap.CodePage865,
	"cp866":     charmap.CodePage866,
	"cp1250":    charmap.Windows1250,
	"cp1251":    charmap.Windows1251,
	"cp1252":    charmap.Windows1252,
	"cp1253":    charmap.Windows1253,
	"cp1254":    charmap.Windows1254,
	"cp1257":    charmap.Windows1257,
	"latin1":    charmap.ISO8859_1,
	"mac-roman": charmap.Macintosh,
	"utf-8":     unicode.UTF8,
}

// lookupEncoding resolves a code page name such as "cp1252" or "windows-1252".
func lookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "windows-")
	if n != "" && n[0] >= '0' && n[0] <= '9' {
		n = "cp" + n
	}
	if n == "utf8" {
		n = "utf-8"
	}
	enc, ok := encodingsByName[n]
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// tableEncoding picks the decoder for a table: the language driver byte when
// recognized, the configured fallback otherwise.
func tableEncoding(driver byte, fallback string) (string, encoding.Encoding, error) {
	name, ok := languageDrivers[driver]
	if !ok {
		name = fallback
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", nil, err
	}
	return name, enc, nil
}
