package form

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedFile is returned when an attachment is not plain text.
var ErrUnsupportedFile = errors.New("only plain text files are supported")

const plainText = "text/plain"

// Upload is a diagnostic file chosen by the user.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// CheckPlainText rejects anything that is not text/plain. The declared type
// (or the extension when none is declared) must say text/plain and the
// content must sniff as text.
func CheckPlainText(u Upload) error {
	declared := u.ContentType
	if declared == "" {
		declared = mime.TypeByExtension(filepath.Ext(u.Filename))
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || mediaType != plainText {
		return fmt.Errorf("%w: %s is %q", ErrUnsupportedFile, u.Filename, declared)
	}

	for detected := mimetype.Detect(u.Content); detected != nil; detected = detected.Parent() {
		if detected.Is(plainText) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not contain text", ErrUnsupportedFile, u.Filename)
}

// StorageName is the stored filename: <unix-millis>_<original name>.
func StorageName(filename string, at time.Time) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + "_" + filepath.Base(filename)
}
