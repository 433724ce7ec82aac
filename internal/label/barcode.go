package label

import (
	"fmt"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
)

// EncodingError reports a payload the configured symbology cannot carry.
// It is not retryable: the payload will not change on a second attempt.
type EncodingError struct {
	Symbology string
	Payload   string
	Reason    string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("barcode encoding failed (%s, payload %q): %s", e.Symbology, e.Payload, e.Reason)
}

const maxCode128Payload = 48

// normalizeSymbology maps an accepted symbology name, case-insensitive and
// with or without the "code" prefix, to the TSPL code type token. The same
// mapping drives both the encoder dispatch and the BARCODE command, so a
// name the encoder accepts is always the name the printer is told.
func normalizeSymbology(symbology string) (string, bool) {
	switch strings.ToLower(symbology) {
	case "", "128", "code128":
		return "128", true
	case "ean13":
		return "EAN13", true
	case "ean8":
		return "EAN8", true
	case "39", "code39":
		return "39", true
	}
	return "", false
}

// EncodeBarcode encodes payload under the field's symbology. The returned
// barcode is unscaled (one pixel per module); the compositor scales it to
// the field box. Leading zeros survive only for the fixed-length EAN
// symbologies: CODE128 treats "0042" and "42" as different payloads anyway.
func EncodeBarcode(symbology, payload string) (barcode.Barcode, error) {
	if payload == "" {
		return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: "empty payload"}
	}

	norm, ok := normalizeSymbology(symbology)
	if !ok {
		return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: "unsupported symbology"}
	}

	switch norm {
	case "128":
		if len(payload) > maxCode128Payload {
			return nil, &EncodingError{Symbology: "128", Payload: payload,
				Reason: fmt.Sprintf("payload exceeds %d characters", maxCode128Payload)}
		}
		bc, err := code128.Encode(payload)
		if err != nil {
			return nil, &EncodingError{Symbology: "128", Payload: payload, Reason: err.Error()}
		}
		return bc, nil

	case "EAN13":
		if len(payload) != 12 && len(payload) != 13 {
			return nil, &EncodingError{Symbology: symbology, Payload: payload,
				Reason: "EAN13 requires 12 or 13 digits"}
		}
		bc, err := ean.Encode(payload)
		if err != nil {
			return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: err.Error()}
		}
		return bc, nil

	case "EAN8":
		if len(payload) != 7 && len(payload) != 8 {
			return nil, &EncodingError{Symbology: symbology, Payload: payload,
				Reason: "EAN8 requires 7 or 8 digits"}
		}
		bc, err := ean.Encode(payload)
		if err != nil {
			return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: err.Error()}
		}
		return bc, nil

	case "39":
		bc, err := code39.Encode(payload, false, false)
		if err != nil {
			return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: err.Error()}
		}
		return bc, nil
	}

	return nil, &EncodingError{Symbology: symbology, Payload: payload, Reason: "unsupported symbology"}
}

// ValidateBarcodePayload checks payload against the symbology without
// producing an image. Used on the TSPL path where the printer renders the
// bars itself but a bad payload must still fail the job up front.
func ValidateBarcodePayload(symbology, payload string) error {
	_, err := EncodeBarcode(symbology, payload)
	return err
}
