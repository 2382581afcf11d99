package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"

	"github.com/fxamacker/cbor/v2"
)

// Format - кодировка bundle
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano

	var err error
	cborEnc, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}

	cborDec, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
}

// ParseFormat maps the ?format= query value. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unknown export format %q, expected json or cbor", s)
	}
}

// FormatFromContentType picks the decoder for a request body
func FormatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == ContentTypeCBOR {
		return FormatCBOR
	}
	return FormatJSON
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == FormatCBOR {
		return ContentTypeCBOR
	}
	return ContentTypeJSON
}

// Encode writes the bundle in format f
func Encode(w io.Writer, b *Bundle, f Format) error {
	switch f {
	case FormatCBOR:
		if err := cborEnc.NewEncoder(w).Encode(b); err != nil {
			return fmt.Errorf("failed to encode cbor bundle: %w", err)
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to encode json bundle: %w", err)
		}
	}
	return nil
}

// Decode reads and validates a bundle. Parse and shape errors wrap ErrImportFormat.
func Decode(r io.Reader, f Format) (*Bundle, error) {
	var b Bundle

	switch f {
	case FormatCBOR:
		if err := cborDec.NewDecoder(r).Decode(&b); err != nil {
			return nil, formatErrorf("cbor: %v", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			return nil, formatErrorf("json: %v", err)
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &b, nil
}
