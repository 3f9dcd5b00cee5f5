// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcrypto.
//
// go-dcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// addInputFlags registers the message source flags
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("in", "", "input as hex")
	cmd.Flags().String("text", "", "input as a literal string")
	cmd.Flags().String("file", "", "read input from file ('-' for stdin)")
}

// readInput returns the message selected by --file, --text or --in
func readInput(cmd *cobra.Command) ([]byte, error) {
	file, _ := cmd.Flags().GetString("file")
	text, _ := cmd.Flags().GetString("text")
	switch {
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		// #nosec G304 - Input path is provided by the user
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	case cmd.Flags().Changed("text"):
		return []byte(text), nil
	default:
		return hexFlag(cmd, "in")
	}
}

// hexFlag decodes a hex string flag. An unset flag decodes to nil.
func hexFlag(cmd *cobra.Command, name string) ([]byte, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil, err
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return b, nil
}

// requiredHex is hexFlag for flags that must be non-empty
func requiredHex(cmd *cobra.Command, name string) ([]byte, error) {
	b, err := hexFlag(cmd, name)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("--%s is required", name)
	}
	return b, nil
}

func toHex(b []byte) string {
	return hex.EncodeToString(b)
}

// wordsHex encodes ladder words little-endian
func wordsHex(w [8]uint32) string {
	var b [32]byte
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return toHex(b[:])
}

// hexWords decodes 32 little-endian bytes into ladder words
func hexWords(cmd *cobra.Command, name string) ([8]uint32, error) {
	var w [8]uint32
	b, err := hexFlag(cmd, name)
	if err != nil {
		return w, err
	}
	if len(b) != 32 {
		return w, fmt.Errorf("--%s must be 32 bytes, got %d", name, len(b))
	}
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return w, nil
}
