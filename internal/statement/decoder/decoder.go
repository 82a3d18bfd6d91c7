// Package decoder turns uploaded statement bytes into the canonical text handed to the model.
// It performs no semantic interpretation beyond normalizing CSV columns.
package decoder

import (
	"errors"
	"path"
	"strings"
	"unicode/utf8"
)

// Format is the detected statement encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	ErrUnsupportedFormat = errors.New("only PDF, XLS/XLSX, CSV or text statements are supported")
	ErrUnextractablePDF  = errors.New("could not extract readable text from the PDF; make sure it is not a scan")
	ErrEmptyStatement    = errors.New("statement is empty")
)

// Canonical is the decoded statement
type Canonical struct {
	Text   string
	Format Format
}

// DetectFormat classifies a statement by content type and file extension
func DetectFormat(contentType, filename string) (Format, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))

	switch {
	case strings.Contains(contentType, "pdf") || ext == ".pdf":
		return FormatPDF, nil
	case strings.Contains(contentType, "spreadsheetml.sheet") || ext == ".xlsx":
		return FormatXLSX, nil
	case strings.Contains(contentType, "ms-excel") || ext == ".xls":
		return FormatXLS, nil
	case strings.Contains(contentType, "csv") || ext == ".csv":
		return FormatCSV, nil
	case strings.HasPrefix(contentType, "text/"):
		return FormatText, nil
	}
	return "", ErrUnsupportedFormat
}

// Decode converts raw statement bytes into canonical text
func Decode(data []byte, contentType, filename string) (*Canonical, error) {
	format, err := DetectFormat(contentType, filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyStatement
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = decodePDF(data)
	case FormatXLSX:
		text, err = decodeXLSX(data)
	case FormatXLS:
		text, err = decodeXLS(data)
	case FormatCSV:
		text, err = decodeCSV(data)
	case FormatText:
		text = DecodeText(data)
	}
	if err != nil {
		return nil, err
	}

	return &Canonical{Text: text, Format: format}, nil
}

// DecodeText reads bytes as UTF-8, replacing invalid sequences with U+FFFD
func DecodeText(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
