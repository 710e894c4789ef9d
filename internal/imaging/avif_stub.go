//go:build !libheif || !cgo

package imaging

import "errors"

var errAVIFUnavailable = errors.New("avif support requires the libheif build tag")

func decodeAVIF(_ []byte) (*Buffer, error) {
	return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt, Err: errAVIFUnavailable}
}

func encodeAVIF(_ *Buffer, _ EncodeParams) ([]byte, error) {
	return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: errAVIFUnavailable}
}
