// Package uniuri generates random strings from crypto/rand for file name suffixes and tokens.
package uniuri
