package normalizer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"fjacquet/ledgerflow/internal/parsererror"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lookupEncoding maps an encoding label to a decoder. "auto" and the empty
// label sniff the data: valid UTF-8 is read as is, anything else as GB18030,
// which covers the GBK files Chinese payment apps emit.
func lookupEncoding(label string, data []byte) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "auto":
		if utf8.Valid(data) {
			return unicode.UTF8BOM, nil
		}
		return simplifiedchinese.GB18030, nil
	case "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM, nil
	case "gbk":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, &parsererror.ConfigError{Field: "encoding", Reason: fmt.Sprintf("unknown encoding %q", label)}
	}
	if name == "utf-8" {
		return unicode.UTF8BOM, nil
	}
	return enc, nil
}

// decode converts raw export bytes to UTF-8 without a byte order mark.
func decode(data []byte, label string) ([]byte, error) {
	enc, err := lookupEncoding(label, data)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input as %s: %w", label, err)
	}
	return bytes.TrimPrefix(out, utf8BOM), nil
}
