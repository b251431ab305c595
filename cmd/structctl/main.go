package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/farwydi/structapi"
	"github.com/farwydi/structapi/layout"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "structctl"
	app.Usage = "inspect and decode binary data against struct layouts"
	app.Commands = []cli.Command{
		layoutsCommand(),
		sizeCommand(),
		decodeCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "structctl:", err)
		os.Exit(1)
	}
}

func layoutsCommand() cli.Command {
	return cli.Command{
		Name:  "layouts",
		Usage: "list the layouts declared in a TOML document",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "layouts", Usage: "path to a layout TOML file"},
		},
		Action: func(c *cli.Context) error {
			set, err := layout.Load(c.String("layouts"))
			if err != nil {
				return err
			}
			for _, name := range set.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func sizeCommand() cli.Command {
	return cli.Command{
		Name:  "size",
		Usage: "print a layout's format string and static size",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "layouts", Usage: "path to a layout TOML file"},
			cli.StringFlag{Name: "name", Usage: "layout name inside the TOML file"},
			cli.StringFlag{Name: "format", Usage: "struct format string, e.g. '!I6s'"},
		},
		Action: func(c *cli.Context) error {
			// -layouts without -name sizes every layout in the file
			if path := c.String("layouts"); path != "" && c.String("name") == "" {
				set, err := layout.Load(path)
				if err != nil {
					return err
				}
				lines, err := layoutSizeLines(set)
				if err != nil {
					return err
				}
				for _, line := range lines {
					fmt.Println(line)
				}
				return nil
			}
			s, err := resolveStruct(c)
			if err != nil {
				return err
			}
			fmt.Println(sizeLine(s))
			return nil
		},
	}
}

func decodeCommand() cli.Command {
	return cli.Command{
		Name:      "decode",
		Usage:     "decode a binary file against a layout",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "layouts", Usage: "path to a layout TOML file"},
			cli.StringFlag{Name: "name", Usage: "layout name inside the TOML file"},
			cli.StringFlag{Name: "format", Usage: "struct format string, e.g. '!I6s'"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one input file")
			}
			s, err := resolveStruct(c)
			if err != nil {
				return err
			}
			data, err := ioutil.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			if err := s.Unpack(data); err != nil {
				return errors.Wrap(err, "decoding")
			}
			printStruct(s, "")
			return nil
		},
	}
}

func sizeLine(s *structapi.Struct) string {
	name := s.Name()
	if name == "" {
		name = "(anonymous)"
	}
	size := s.Size()
	return fmt.Sprintf("%s  format=%s  size=%s (%d bytes)",
		name, s.Format(), humanize.IBytes(uint64(size)), size)
}

func layoutSizeLines(set *layout.Set) ([]string, error) {
	names := set.Names()
	lines := make([]string, 0, len(names))
	for _, name := range names {
		s, err := set.Get(name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, sizeLine(s))
	}
	return lines, nil
}

// resolveStruct builds the layout selected by the command's flags,
// either a format string or a named layout from a TOML document.
func resolveStruct(c *cli.Context) (*structapi.Struct, error) {
	format := c.String("format")
	path := c.String("layouts")

	switch {
	case format != "" && path != "":
		return nil, errors.New("use either -format or -layouts, not both")
	case format != "":
		return structapi.Compile(format)
	case path != "":
		set, err := layout.Load(path)
		if err != nil {
			return nil, err
		}
		name := c.String("name")
		if name == "" {
			return nil, errors.New("-layouts needs -name")
		}
		return set.Get(name)
	}
	return nil, errors.New("need -format or -layouts")
}

func printStruct(s *structapi.Struct, indent string) {
	for _, f := range s.Fields() {
		if f.Kind() == structapi.KindPad {
			continue
		}
		if inner := s.Nested(f.Name()); inner != nil {
			fmt.Printf("%s%s:\n", indent, f.Name())
			printStruct(inner, indent+"  ")
			continue
		}
		switch v := f.Value().(type) {
		case string:
			fmt.Printf("%s%s = %q\n", indent, f.Name(), v)
		case []byte:
			fmt.Printf("%s%s = %x\n", indent, f.Name(), v)
		default:
			fmt.Printf("%s%s = %v\n", indent, f.Name(), v)
		}
	}
}
