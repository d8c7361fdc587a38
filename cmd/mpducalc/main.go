package main

import (
	uhfmac "github.com/ualbertasat/uhfmac/src"
)

func main() {
	uhfmac.MPDUCalcMain()
}
