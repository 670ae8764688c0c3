package utils

import (
	"io"
	"net/http"
	"os"
)

// DetectContentType sniffs the MIME type of a file from its first 512 bytes.
// It always returns a valid content type, "application/octet-stream" being
// the fallback.
func DetectContentType(fname string) (string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
