// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sdnv

import (
	"bytes"
	"errors"
	"io"
	"math"
)

var (
	// ErrTruncatedInput is returned if the input ends before a terminating group was read.
	ErrTruncatedInput = errors.New("sdnv: truncated input")

	// ErrOverflow is returned if the decoded value exceeds 64 bits.
	ErrOverflow = errors.New("sdnv: value exceeds 64 bits")
)

const (
	groupMask    = 0x7F
	continuation = 0x80
)

// Len returns the length of the minimal encoding of v.
func Len(v uint64) (n int) {
	for n = 1; v > groupMask; n++ {
		v >>= 7
	}
	return
}

// Encode returns the minimal SDNV encoding of v. Zero is encoded as a single zero byte.
func Encode(v uint64) []byte {
	n := Len(v)
	buf := make([]byte, n)

	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(v & groupMask)
		if i != n-1 {
			buf[i] |= continuation
		}
		v >>= 7
	}

	return buf
}

// Write the minimal SDNV encoding of v to w.
func Write(v uint64, w io.Writer) error {
	_, err := w.Write(Encode(v))
	return err
}

// Read an SDNV from r, byte by byte. The amount of consumed bytes is returned as well.
//
// There is no limit on the amount of groups. Leading zero groups are accepted, but a
// value requiring more than 64 bits results in ErrOverflow.
func Read(r io.ByteReader) (v uint64, n int, err error) {
	for {
		b, readErr := r.ReadByte()
		if readErr == io.EOF {
			err = ErrTruncatedInput
			return
		} else if readErr != nil {
			err = readErr
			return
		}
		n++

		if v > math.MaxUint64>>7 {
			err = ErrOverflow
			return
		}
		v = v<<7 | uint64(b&groupMask)

		if b&continuation == 0 {
			return
		}
	}
}

// Decode an SDNV from the start of buf and return its value and encoded length.
func Decode(buf []byte) (uint64, int, error) {
	return Read(bytes.NewReader(buf))
}
