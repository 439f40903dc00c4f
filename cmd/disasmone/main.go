// Command disasmone is the smaller, non-interactive front-end: disassemble
// one flat region of a file with no loader or operating-system selection,
// the direct descendant of the teacher's original root-level main.go
// prototype (which hardcoded a single disassemble(data, maxBytes, offset)
// call) and cmd/bbc-disasm's disasm subcommand (file/offset/length/loadaddr
// arguments, --codeaddrs seed list). Kept as a second cmd/ entry the way
// the teacher ships both bbc-disasm and bbcdisasm.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"disasm/arch/x86ref"
	"disasm/internal/addr"
	"disasm/internal/analyzer"
	"disasm/internal/cell"
	"disasm/internal/document"
	"disasm/internal/memarea"
	"disasm/internal/registry"
	"disasm/internal/stream"
)

func fileLength(filename string) (int64, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// disassembleRegion builds a single throwaway Document covering
// data[offset:offset+length], seeds it at every address in codeAddrs (plus
// loadAddr, the region's first address), and runs the recursive disassembler, mirroring the
// teacher's disassemble(program, maxBytes, offset) but against the
// Document model instead of printing as it decodes.
func disassembleRegion(data []byte, offset, length int64, loadAddr uint64, codeAddrs []uint64) (*document.Document, error) {
	region := data[offset : offset+length]

	reg := registry.New()
	arch := x86ref.New()
	reg.RegisterArchitecture(arch)

	doc := document.New()
	doc.SetBinaryStream(stream.NewMemoryStream(region, stream.LittleEndian))

	area := memarea.New(
		"region",
		memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: length},
		memarea.VirtualRegion{Address: loadAddr, Size: uint64(length)},
		arch.Name(),
		x86ref.Mode32,
	)
	doc.InsertArea(area)

	seeds := append([]uint64{loadAddr}, codeAddrs...)
	an := analyzer.New(doc, reg)
	for _, s := range seeds {
		if err := an.Disassemble(addr.New(0, s)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "disasmone"
	app.Usage = "Disassemble a single flat region of a file, non-interactively"
	app.ArgsUsage = "file [offset] [length]"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "loadaddr", Usage: "load address for the code"},
		cli.StringFlag{Name: "codeaddrs", Usage: "comma-separated additional seed addresses, hex"},
	}
	app.Action = func(c *cli.Context) error {
		args := c.Args()
		if len(args) < 1 {
			return cli.NewExitError("Insufficient arguments", 1)
		}
		file := args[0]

		fileLen, err := fileLength(file)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		var offset int64
		if len(args) >= 2 {
			if offset, err = strconv.ParseInt(args[1], 0, 64); err != nil {
				return cli.NewExitError("Could not parse offset", 1)
			}
			if offset < 0 {
				return cli.NewExitError("offset cannot be before start of file", 1)
			}
			if offset >= fileLen {
				return cli.NewExitError("offset cannot be past end of file", 1)
			}
		}

		length := fileLen - offset
		if len(args) >= 3 {
			if length, err = strconv.ParseInt(args[2], 0, 64); err != nil {
				return cli.NewExitError("Could not parse length", 1)
			}
			if length < 0 {
				return cli.NewExitError("length cannot be negative", 1)
			}
			if length > fileLen-offset {
				length = fileLen - offset
			}
		}

		data, err := ioutil.ReadFile(file)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		loadAddr := uint64(c.Int("loadaddr"))

		var codeAddrs []uint64
		if s := c.String("codeaddrs"); s != "" {
			for _, part := range strings.Split(s, ",") {
				v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(part), "0x"), 16, 64)
				if err != nil {
					return cli.NewExitError("Could not parse address", 1)
				}
				codeAddrs = append(codeAddrs, v)
			}
		}

		doc, err := disassembleRegion(data, offset, length, loadAddr, codeAddrs)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		doc.ForEachCell(func(at addr.Address, cl *cell.Cell) bool {
			if cl.IsCode() {
				var operands []string
				for _, o := range cl.Insn.Operands {
					operands = append(operands, o.Text)
				}
				fmt.Printf("$%04X %s %s\n", at.Offset, cl.Insn.Mnemonic, strings.Join(operands, ", "))
			} else {
				fmt.Printf("$%04X db %d bytes\n", at.Offset, cl.Header.Length)
			}
			return true
		})
		return nil
	}
	app.Run(os.Args)
}
