package log

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureVersion is the version of the capture file layout written by
// FileLogger.
const CaptureVersion = 1

// captureTag marks the header of a capture file. Its number spells "mesh",
// so every capture file starts with the bytes 0xDA 'm' 'e' 's' 'h'.
const captureTag = 0x6D657368

var captureMagic = []byte{0xDA, 'm', 'e', 's', 'h'}

// ErrUnsupportedCapture is returned for capture files of another version.
var ErrUnsupportedCapture = errors.New("unsupported capture file")

// Header is the first item of a capture file.
type Header struct {
	Version int       `cbor:"1,keyasint"`
	Created time.Time `cbor:"2,keyasint"`
}

// writeHeader writes a header for a capture started now.
func writeHeader(w io.Writer) error {
	data, err := eventEncoding.Marshal(cbor.Tag{
		Number:  captureTag,
		Content: Header{Version: CaptureVersion, Created: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("encode capture header: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// parseHeader decodes raw as a capture header. It reports false if raw is
// not a header, which is the case for streams written without one.
func parseHeader(raw cbor.RawMessage) (Header, bool, error) {
	if !bytes.HasPrefix(raw, captureMagic) {
		return Header{}, false, nil
	}

	var tag cbor.RawTag
	if err := eventDecoding.Unmarshal(raw, &tag); err != nil {
		return Header{}, false, fmt.Errorf("decode capture header: %w", err)
	}
	var h Header
	if err := eventDecoding.Unmarshal(tag.Content, &h); err != nil {
		return Header{}, false, fmt.Errorf("decode capture header: %w", err)
	}
	if h.Version != CaptureVersion {
		return Header{}, false, fmt.Errorf("%w: version %d", ErrUnsupportedCapture, h.Version)
	}
	return h, true, nil
}
