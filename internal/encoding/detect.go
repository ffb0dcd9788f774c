// Package encoding turns uploaded spreadsheets into UTF-8 text whatever
// charset the spreadsheet program saved them in.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names the encoding an upload was decoded from.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO885915   Charset = "ISO-8859-15"
	ISO88599    Charset = "ISO-8859-9"
)

const sniffSize = 4096

var boms = []struct {
	prefix  []byte
	charset Charset
}{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// chardet reports ISO-8859-1 for most Western European text. Spreadsheets
// exported on Windows are really windows-1252, a superset, so both decode
// the same way.
var detected = map[string]Charset{
	"UTF-8":        UTF8,
	"ISO-8859-1":   Windows1252,
	"windows-1252": Windows1252,
	"ISO-8859-15":  ISO885915,
	"ISO-8859-9":   ISO88599,
}

var decoders = map[Charset]xencoding.Encoding{
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	Windows1252: charmap.Windows1252,
	ISO885915:   charmap.ISO8859_15,
	ISO88599:    charmap.ISO8859_9,
}

// Detect sniffs the start of r and returns a reader yielding UTF-8 along
// with the charset it decoded from. A byte-order mark wins, then valid
// UTF-8, then chardet's best guess, then windows-1252.
func Detect(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("sniffing encoding: %w", err)
	}

	charset := sniff(head, len(head) == sniffSize)

	if charset == UTF8 {
		if bytes.HasPrefix(head, boms[0].prefix) {
			_, _ = br.Discard(len(boms[0].prefix))
		}

		return br, UTF8, nil
	}

	return transform.NewReader(br, decoders[charset].NewDecoder()), charset, nil
}

// NewUTF8Reader is Detect without the charset.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	out, _, err := Detect(r)
	return out, err
}

// sniff classifies head. A truncated head may end inside a multi-byte
// rune, which must not count against UTF-8.
func sniff(head []byte, truncated bool) Charset {
	for _, b := range boms {
		if bytes.HasPrefix(head, b.prefix) {
			return b.charset
		}
	}

	body := head
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(body) > 0 && !utf8.Valid(body); i++ {
			body = body[:len(body)-1]
		}
	}

	if utf8.Valid(body) {
		return UTF8
	}

	result, err := chardet.NewTextDetector().DetectBest(head)
	if err == nil {
		if c, ok := detected[result.Charset]; ok {
			return c
		}
	}

	return Windows1252
}
