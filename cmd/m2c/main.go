package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stagezero/m2c"
)

const defaultWritePermission = 0644 // -rw-r--r--

func main() {
	flag.String("architecture", "knight-posix", "Target architecture: knight-posix, knight-native, x86, amd64, armv7l, aarch64, riscv32 or riscv64")
	flag.Bool("bootstrap-mode", false, "Narrow the accepted grammar for self-compilation")
	flag.Bool("debug", false, "Dump the token stream to stderr before compiling")
	flag.String("output", "", "Path of the output file (defaults to tape_02 on the Knight targets, stdout otherwise)")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.StringSliceP("file", "f", nil, "Input file (repeatable; inputs are concatenated in order)")
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatal(err)
	}

	files := viper.GetStringSlice("file")
	if len(files) == 0 {
		log.Fatal("No input files informed")
	}

	arch, err := m2c.ArchitectureByName(viper.GetString("architecture"))
	if err != nil {
		log.Fatal(err)
	}

	input, err := concatenateInputs(files)
	if err != nil {
		log.Fatal(err)
	}

	if viper.GetBool("debug") {
		tokens, err := m2c.Tokenize(input, files[0])
		if err != nil {
			log.Fatal(err)
		}
		for _, t := range tokens {
			fmt.Fprintf(os.Stderr, "%s:%d: %s\n", t.Filename, t.Linenumber, t.Text)
		}
	}

	output, err := m2c.Compile(input, files[0], m2c.Options{
		Architecture:  arch,
		BootstrapMode: viper.GetBool("bootstrap-mode"),
	})
	if err != nil {
		log.Fatal(err)
	}

	path := viper.GetString("output")
	if path == "" {
		if arch == m2c.KnightPosix || arch == m2c.KnightNative {
			path = "tape_02"
		} else {
			fmt.Print(output)
			return
		}
	}
	if err := os.WriteFile(path, []byte(output), defaultWritePermission); err != nil {
		log.Fatal(errors.Wrap(err, "can't write output"))
	}
}

// concatenateInputs joins the translation units into one stream,
// re-rooting provenance at each file boundary so diagnostics name
// the right file and line.
func concatenateInputs(files []string) (string, error) {
	out := &strings.Builder{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", errors.Wrap(err, "can't open input file")
		}
		fmt.Fprintf(out, "#FILENAME %s 1\n", f)
		out.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}
