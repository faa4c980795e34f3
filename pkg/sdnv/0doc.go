// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sdnv implements Self-Delimiting Numeric Values, the variable-length
// unsigned integer encoding used throughout the DTN wire formats.
//
// A value is split into 7-bit groups, most significant group first. Every
// group except the last one has its top bit set.
//
//	b := sdnv.Encode(300)        // []byte{0x82, 0x2C}
//	v, n, err := sdnv.Decode(b)  // 300, 2, nil
package sdnv
