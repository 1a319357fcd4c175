package xstat

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/RocGit/appifi"
)

// sniffLen is how much content http.DetectContentType considers
const sniffLen = 512

var magicByType = map[string]appifi.Magic{
	"image/jpeg":      "JPEG",
	"image/png":       "PNG",
	"image/gif":       "GIF",
	"image/bmp":       "BMP",
	"image/webp":      "WEBP",
	"video/mp4":       "MP4",
	"video/webm":      "WEBM",
	"video/avi":       "AVI",
	"audio/mpeg":      "MP3",
	"audio/wave":      "WAV",
	"application/ogg": "OGG",
	"application/pdf": "PDF",
}

// Sniff returns the content-type tag for the leading bytes of a file, or the
// empty Magic when the content is not a recognized media or document type.
func Sniff(head []byte) appifi.Magic {
	ct, _, _ := strings.Cut(http.DetectContentType(head), ";")
	return magicByType[ct]
}

func sniffFile(path string) (appifi.Magic, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	return Sniff(head[:n]), nil
}
