// keytool converts between trading timestamps and packed time keys.
//
//	keytool encode 20240102 093000
//	keytool decode -partitions 8 60966664
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"alphaflow/internal/timecode"
	"alphaflow/processor"
)

var errUsage = errors.New("usage: keytool encode <YYYYMMDD> <HHMMSS> | keytool decode [-partitions n] <key>")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "encode":
		return encode(args[1:], out)
	case "decode":
		return decode(args[1:], out)
	}
	return errUsage
}

func parseInt32(s, what string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return int32(v), nil
}

func encode(args []string, out io.Writer) error {
	if len(args) != 2 {
		return errUsage
	}
	day, err := parseInt32(args[0], "trading day")
	if err != nil {
		return err
	}
	tm, err := parseInt32(args[1], "trade time")
	if err != nil {
		return err
	}
	key, err := timecode.Encode(day, tm)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d\t%s\n", uint32(key), key)
	return err
}

func decode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	partitions := fs.Int("partitions", 1, "number of reducers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	v, err := strconv.ParseUint(fs.Arg(0), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid key %q", fs.Arg(0))
	}
	key := timecode.Key(v)
	_, err = fmt.Fprintf(out, "%s\tpartition=%d\n", key, processor.Partition(key, *partitions))
	return err
}
