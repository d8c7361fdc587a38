package uhfmac

import (
	"fmt"
	"strings"
)

// hexDump formats p 16 bytes to a line, offset first and printable
// characters on the right, for debug logging of MPDUs and frames.
func hexDump(p []byte) string {
	var sb strings.Builder
	var offset = 0

	for len(p) > 0 {
		var n = min(len(p), 16)

		fmt.Fprintf(&sb, "  %03x: ", offset)

		for i := range n {
			fmt.Fprintf(&sb, " %02x", p[i])
		}

		sb.WriteString(strings.Repeat("   ", 16-n))
		sb.WriteString("  ")

		for i := range n {
			if p[i] >= 0x20 && p[i] <= 0x7E {
				sb.WriteByte(p[i])
			} else {
				sb.WriteByte('.')
			}
		}

		sb.WriteByte('\n')

		p = p[n:]
		offset += n
	}

	return sb.String()
}
