package uhfmac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexDump(t *testing.T) {
	var p = append([]byte("ES+R2200 BD888E1F"), 0x0D, 0x7E)

	var want = "  000:  45 53 2b 52 32 32 30 30 20 42 44 38 38 38 45 31  ES+R2200 BD888E1\n" +
		"  010:  46 0d 7e                                         F.~\n"

	assert.Equal(t, want, hexDump(p))
	assert.Empty(t, hexDump(nil))
}
