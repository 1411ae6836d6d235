package common

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// ImageFile is an uploaded image read fully into memory.
type ImageFile struct {
	Data        []byte
	ContentType string
}

var ErrNotAnImage = errors.New("only image uploads are accepted")

// ReadImageFiles reads the files posted under field. It rejects more than
// maxCount files, files over maxBytes and anything that does not sniff as an
// image.
func ReadImageFiles(form *multipart.Form, field string, maxCount int, maxBytes int64) ([]ImageFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if len(headers) > maxCount {
		return nil, fmt.Errorf("at most %d images are allowed", maxCount)
	}

	files := make([]ImageFile, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxBytes {
			return nil, fmt.Errorf("image %q exceeds %d bytes", header.Filename, maxBytes)
		}
		data, err := readPart(header, maxBytes)
		if err != nil {
			return nil, err
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			return nil, fmt.Errorf("%w: %s", ErrNotAnImage, header.Filename)
		}
		files = append(files, ImageFile{Data: data, ContentType: contentType})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image %q exceeds %d bytes", header.Filename, maxBytes)
	}
	return data, nil
}
