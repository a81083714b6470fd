package cmd

import (
	"fmt"
	"io"
)

const banner = `
   __       _ _
  / _| ___ | (_) ___
 | |_ / _ \| | |/ _ \
 |  _| (_) | | | (_) |
 |_|  \___/|_|_|\___/
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Portfolio development backend - Version %s\x1b[0m\n\n", Version)
}
