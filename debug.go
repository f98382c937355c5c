// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/524D/lcmsdiff/internal/align"

	flag "github.com/spf13/pflag"
)

var debugWindows *string // Print debug output for given window range

// Debug output goes here
var debugOut io.Writer = os.Stdout

func init() {
	debugWindows = flag.String("debug", "",
		"Print debug output for given window `range` e.g. 3:6")
}

func debugLogWindows(windows [][]float64, aux []align.WindowInfo, assign []int) {
	if *debugWindows == `` {
		return
	}
	debugMin, debugMax, _ := parseIntRange(*debugWindows, 0, len(windows)-1)
	for i := debugMin; i <= debugMax && i < len(windows); i++ {
		a := aux[i]
		fmt.Fprintf(debugOut, "Window:%d cluster:%d mz:%f rt:%f expMax:%f ctrlMax:%f diffMax:%f\n",
			a.Index, assign[i], a.Mz, a.RT, a.ExpMax, a.CtrlMax, a.DiffMax)
		for j, v := range windows[i] {
			if v != 0 {
				fmt.Fprintf(debugOut, "%d %f\n", j, v)
			}
		}
	}
}
