package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// tableFlags are the -i/-o pair shared by the CSV pass commands.
type tableFlags struct {
	input  string
	output string
}

// runTablePass opens input and output and runs pass between them.
func runTablePass(in, out string, pass func(io.Reader, io.Writer) (int, error)) (int, error) {
	inFile, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer inFile.Close()

	outFile, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", out, err)
	}
	bw := bufio.NewWriter(outFile)

	n, err := pass(bufio.NewReader(inFile), bw)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}
	return n, err
}
