package display

import (
	"fmt"
	"os"

	"github.com/neurodata/fmripipe/internal/logging"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner() {
	if logging.Magenta != "" {
		fmt.Fprint(os.Stdout, "\033[1;95m")
	}
	fmt.Fprint(os.Stdout, `  __                   _         _
 / _| _ __ ___   _ __ (_) _ __  (_) _ __    ___
| |_ | '_ `+"`"+` _ \ | '__|| || '_ \ | || '_ \  / _ \
|  _|| | | | | || |   | || |_) || || |_) ||  __/
|_|  |_| |_| |_||_|   |_|| .__/ |_|| .__/  \___|
                         |_|       |_|
`)
	if logging.Magenta != "" {
		fmt.Fprintln(os.Stdout, logging.NC)
	}
}
