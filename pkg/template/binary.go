package template

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/reporoller/reporoller/pkg/constants"
)

// magicNumbers lists leading byte sequences recognised as binary formats
// even when their extension isn't in the whitelist (§4.3 "detected by
// magic-number inspection of the first 512 bytes").
var magicNumbers = [][]byte{
	{0x89, 'P', 'N', 'G'},         // PNG
	{0xFF, 0xD8, 0xFF},            // JPEG
	{'G', 'I', 'F', '8'},          // GIF
	{'%', 'P', 'D', 'F'},          // PDF
	{'P', 'K', 0x03, 0x04},        // ZIP-based formats (zip, jar, docx, ...)
	{0x1F, 0x8B},                  // gzip
	{0x7F, 'E', 'L', 'F'},         // ELF binaries
	{'M', 'Z'},                    // Windows PE
	{0x00, 0x61, 0x73, 0x6D},      // wasm
	{0xCA, 0xFE, 0xBA, 0xBE},      // Java class file
	{0x00, 0x00, 0x01, 0x00},      // ICO
}

// isBinary reports whether content should be copied byte-for-byte rather
// than rendered, per §4.3: extension whitelist first, then a magic-number
// sniff of the leading constants.BinarySniffLength bytes.
func isBinary(path string, content []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, whitelisted := range constants.BinaryExtensionWhitelist {
		if ext == whitelisted {
			return true
		}
	}

	sniffLen := len(content)
	if sniffLen > constants.BinarySniffLength {
		sniffLen = constants.BinarySniffLength
	}
	head := content[:sniffLen]

	for _, magic := range magicNumbers {
		if bytes.HasPrefix(head, magic) {
			return true
		}
	}

	// A NUL byte within the sniff window is a strong binary signal absent
	// from well-formed UTF-8 text templates.
	return bytes.IndexByte(head, 0x00) != -1
}
