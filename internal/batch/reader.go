package batch

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// EncodingGB18030 selects GB18030 decoding for files that are not UTF-8.
const EncodingGB18030 = "gb18030"

// EncodingError means a transcript is not valid UTF-8 and could not be
// decoded with the configured fallback either.
type EncodingError struct {
	Path     string
	Fallback string
}

func (e *EncodingError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("%s: not valid UTF-8", e.Path)
	}
	return fmt.Sprintf("%s: not valid UTF-8 and %s decoding failed", e.Path, e.Fallback)
}

// ReadTranscript reads a transcript as UTF-8, dropping a leading BOM. When
// fallback is "gb18030", bytes that are not UTF-8 are decoded as GB18030.
func ReadTranscript(path, fallback string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return DecodeTranscript(path, data, fallback)
}

// DecodeTranscript is ReadTranscript for bytes already in memory.
func DecodeTranscript(name string, data []byte, fallback string) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	if !strings.EqualFold(fallback, EncodingGB18030) {
		return "", &EncodingError{Path: name}
	}
	decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil || !utf8.Valid(decoded) || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", &EncodingError{Path: name, Fallback: EncodingGB18030}
	}
	return string(decoded), nil
}
