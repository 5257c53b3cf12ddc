// ABOUTME: Streams an export attachment response to disk.
// ABOUTME: Writes fixed-size chunks to a temporary file and renames it into place when complete.

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

const (
	defaultChunkSize = 32 * 1024
	// sniffLen matches mimetype's default read limit.
	sniffLen = 3072
)

// saveResponse copies the response body into filename and returns the number
// of bytes written. The body is always closed. Nothing is left at filename if
// the copy fails.
func saveResponse(resp *http.Response, filename string, chunkSize int) (written int64, err error) {
	defer resp.Body.Close()

	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	partial := filename + ".part"
	f, err := os.Create(partial)
	if err != nil {
		return 0, err
	}
	defer func() {
		if f != nil {
			f.Close()
		}
		if err != nil {
			os.Remove(partial)
		}
	}()

	buf := make([]byte, chunkSize)
	var head []byte
	sniffed := false
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if !sniffed {
				head = append(head, buf[:min(n, sniffLen-len(head))]...)
				if len(head) >= sniffLen {
					checkArchiveType(head, filename)
					sniffed = true
				}
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("writing %s: %w", filename, err)
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("reading attachment: %w", readErr)
		}
	}

	if !sniffed && len(head) > 0 {
		checkArchiveType(head, filename)
	}

	closeErr := f.Close()
	f = nil
	if closeErr != nil {
		return written, closeErr
	}

	if err := os.Rename(partial, filename); err != nil {
		return written, err
	}
	return written, nil
}

func checkArchiveType(head []byte, filename string) {
	mtype := mimetype.Detect(head)
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return
		}
	}

	logrus.WithFields(logrus.Fields{
		"file":      filename,
		"mime_type": mtype.String(),
	}).Warn("Downloaded export does not look like a zip archive")
}
