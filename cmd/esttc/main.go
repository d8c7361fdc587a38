/* Send ESTTC commands to the radio */
package main

import (
	uhfmac "github.com/ualbertasat/uhfmac/src"
)

func main() {
	uhfmac.ESTTCMain()
}
