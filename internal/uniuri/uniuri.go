package uniuri

import (
	"crypto/rand"
)

const (
	// StdLen gives ~95 bits of entropy with StdChars.
	StdLen = 16
	// SuffixLen is the length of file name collision suffixes.
	SuffixLen = 8
)

var (
	// StdChars are upper and lower case letters and digits.
	StdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789") //nolint:gochecknoglobals
	// FileChars are safe on case insensitive file systems and in urls.
	FileChars = []byte("abcdefghijklmnopqrstuvwxyz0123456789") //nolint:gochecknoglobals
)

// New returns a random string of StdLen StdChars.
func New() string {
	return NewLenChars(StdLen, StdChars)
}

// NewLen returns a random string of length StdChars.
func NewLen(length int) string {
	return NewLenChars(length, StdChars)
}

// Suffix returns a random SuffixLen string of FileChars.
func Suffix() string {
	return NewLenChars(SuffixLen, FileChars)
}

// NewLenChars returns a random string of length taken from chars (2 to 256 entries).
// Random bytes that would bias the distribution are rejected.
func NewLenChars(length int, chars []byte) string {
	if length <= 0 {
		return ""
	}

	clen := len(chars)
	if clen < 2 || clen > 256 {
		panic("uniuri: wrong charset length")
	}

	// largest multiple of clen that fits a byte
	limit := 256 - (256 % clen)

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			panic("uniuri: error reading random bytes: " + err.Error())
		}

		for _, b := range buf {
			if int(b) >= limit {
				continue
			}

			out = append(out, chars[int(b)%clen])
			if len(out) == length {
				break
			}
		}
	}

	return string(out)
}
