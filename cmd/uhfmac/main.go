package main

/*------------------------------------------------------------------
 *
 * Purpose:   	MAC layer daemon for the UHF transparent mode radio link.
 *
 *		CSP client applications connect over KISS.  Their packets
 *		are fragmented, optionally error corrected, and sent over
 *		the radio.  Packets reassembled from the radio go back to
 *		every client.
 *
 *---------------------------------------------------------------*/

import (
	uhfmac "github.com/ualbertasat/uhfmac/src"
)

func main() {
	uhfmac.UHFMACMain()
}
