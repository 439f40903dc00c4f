// Command disasm is the primary CLI host for the analysis engine: load a
// flat binary image, run the recursive disassembler from one or more
// entry points (or the label named "start"), then inspect the resulting
// Document via subcommands for its memory-area table, a function's
// control-flow graph, or an address's cross references. Modeled on the
// teacher's cmd/bbc-disasm/main.go: a urfave/cli app whose Commands slice
// is the entire surface, cli.NewExitError on setup failure.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"disasm/arch/x86ref"
	"disasm/internal/action"
	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/cfg"
	"disasm/internal/document"
	"disasm/internal/errs"
	"disasm/internal/memarea"
	"disasm/internal/persist"
	"disasm/internal/registry"
	"disasm/loader/flatloader"
	"disasm/osenv/bareos"
)

func parseHex(s string, fallback uint64) (uint64, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}

// buildDocument loads file as a flat image, registers the reference
// backends, and runs the recursive disassembler from every entry in
// entries (or the label "start" at offset 0 when entries is empty).
func buildDocument(file string, base uint64, entries []uint64, entryName string) (*document.Document, *registry.Registry, error) {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New()
	arch := x86ref.New()
	reg.RegisterArchitecture(arch)

	ldr := flatloader.New(data, base, 0, arch.Name(), x86ref.Mode32, entryName)
	reg.RegisterLoader(ldr)

	doc := document.New()
	if err := ldr.Map(doc); err != nil {
		return nil, nil, err
	}

	osBackend := bareos.New(reg, arch, x86ref.Mode32)
	reg.RegisterOperatingSystem(osBackend)

	if len(entries) == 0 {
		if at, ok := doc.AddressOfLabel(entryName); ok {
			entries = []uint64{at.Offset}
		}
	}
	for _, e := range entries {
		if err := osBackend.AnalyzeFunction(doc, addr.New(0, e)); err != nil {
			if !errs.Is(err, errs.UnmappedAddress) {
				return nil, nil, err
			}
		}
	}

	return doc, reg, nil
}

func parseEntries(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		v, err := parseHex(strings.TrimSpace(part), 0)
		if err != nil {
			return nil, fmt.Errorf("could not parse entry %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func listCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("Insufficient arguments", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entries, err := parseEntries(c.String("entry"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	doc, _, err := buildDocument(args[0], base, entries, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Println("Name  Access  VirtAddr  Size      ArchTag  Cells")
	for _, a := range doc.Areas() {
		fmt.Printf("%-5s %-7s 0x%08X 0x%08X %-8s %d\n",
			a.Name, accessString(a.AccessFlags), a.Virtual.Address, a.Virtual.Size, a.DefaultArchTag, a.Len())
	}
	return nil
}

func accessString(a memarea.Access) string {
	var sb strings.Builder
	if a&memarea.Read != 0 {
		sb.WriteByte('R')
	}
	if a&memarea.Write != 0 {
		sb.WriteByte('W')
	}
	if a&memarea.Execute != 0 {
		sb.WriteByte('X')
	}
	return sb.String()
}

func disasmCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("Insufficient arguments", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entries, err := parseEntries(c.String("entry"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	doc, _, err := buildDocument(args[0], base, entries, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	doc.ForEachCell(func(at addr.Address, cl *cell.Cell) bool {
		printCell(at, cl)
		return true
	})
	return nil
}

func printCell(at addr.Address, c *cell.Cell) {
	if c.IsCode() {
		operands := make([]string, len(c.Insn.Operands))
		for i, o := range c.Insn.Operands {
			operands[i] = o.Text
		}
		fmt.Printf("%s: %s %s\n", at, c.Insn.Mnemonic, strings.Join(operands, ", "))
		return
	}
	fmt.Printf("%s: db %d bytes\n", at, c.Header.Length)
}

func cfgCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("Usage: cfg <file> <address>", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entryAddr, err := parseHex(args[1], 0)
	if err != nil {
		return cli.NewExitError("Could not parse address", 1)
	}

	doc, _, err := buildDocument(args[0], base, []uint64{entryAddr}, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	graph := cfg.Build(doc, addr.New(0, entryAddr))
	for i, b := range graph.Blocks() {
		fmt.Printf("block %d: %s .. %s\n", i, b.First(), b.Last())
	}
	for _, e := range graph.Edges() {
		fmt.Printf("  %s -> %s (%s)\n", e.Src, e.Dst, e.Kind)
	}
	return nil
}

func xrefsCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("Usage: xrefs <file> <address>", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entries, err := parseEntries(c.String("entry"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	target, err := parseHex(args[1], 0)
	if err != nil {
		return cli.NewExitError("Could not parse address", 1)
	}

	doc, _, err := buildDocument(args[0], base, entries, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	at := addr.New(0, target)
	fmt.Println("From:")
	for _, a := range doc.XRefsFrom(at) {
		fmt.Printf("  -> %s\n", a)
	}
	fmt.Println("To:")
	for _, a := range doc.XRefsTo(at) {
		fmt.Printf("  <- %s\n", a)
	}
	return nil
}

func saveCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("Usage: save <file> <out>", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entries, err := parseEntries(c.String("entry"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	doc, _, err := buildDocument(args[0], base, entries, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	out, err := os.Create(args[1])
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer out.Close()
	if err := persist.Encode(out, doc); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

// actionCommand lists the registered cell actions, or runs one by name over
// a single-address Range when given "action <file> <name> <address>".
func actionCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("Usage: action <file> [name] [address]", 1)
	}
	base, err := parseHex(c.String("base"), 0)
	if err != nil {
		return cli.NewExitError("Could not parse --base", 1)
	}
	entries, err := parseEntries(c.String("entry"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	doc, reg, err := buildDocument(args[0], base, entries, "start")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	actions := action.NewRegistry(reg)
	if len(args) < 2 {
		for _, a := range actions.All() {
			fmt.Printf("%-24s %s\n", a.Name(), a.Label())
		}
		return nil
	}
	if len(args) < 3 {
		return cli.NewExitError("Usage: action <file> <name> <address>", 1)
	}
	act, ok := actions.ByName(args[1])
	if !ok {
		return cli.NewExitError(fmt.Sprintf("no such action %q", args[1]), 1)
	}
	target, err := parseHex(args[2], 0)
	if err != nil {
		return cli.NewExitError("Could not parse address", 1)
	}
	at := addr.New(0, target)
	if err := act.Execute(doc, action.Range{Begin: at, End: at}); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "disasm"
	app.Usage = "Static binary analysis engine: recursive disassembly and symbolic analysis over a flat image"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}

	baseFlag := cli.StringFlag{Name: "base", Usage: "virtual load address of the image, hex (default 0)"}
	entryFlag := cli.StringFlag{Name: "entry", Usage: "comma-separated list of entry offsets, hex (default: label 'start')"}

	app.Commands = []cli.Command{
		{
			Name:      "disasm",
			Aliases:   []string{"d"},
			Usage:     "Load a flat image and run recursive disassembly",
			ArgsUsage: "file",
			Action:    disasmCommand,
			Flags:     []cli.Flag{baseFlag, entryFlag},
		},
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "Print the document's memory-area table",
			ArgsUsage: "file",
			Action:    listCommand,
			Flags:     []cli.Flag{baseFlag, entryFlag},
		},
		{
			Name:      "cfg",
			Usage:     "Print the control-flow graph of the function at address",
			ArgsUsage: "file address",
			Action:    cfgCommand,
			Flags:     []cli.Flag{baseFlag},
		},
		{
			Name:      "xrefs",
			Usage:     "Print the cross references to and from address",
			ArgsUsage: "file address",
			Action:    xrefsCommand,
			Flags:     []cli.Flag{baseFlag, entryFlag},
		},
		{
			Name:      "save",
			Usage:     "Disassemble and persist the Document to out",
			ArgsUsage: "file out",
			Action:    saveCommand,
			Flags:     []cli.Flag{baseFlag, entryFlag},
		},
		{
			Name:      "action",
			Usage:     "List cell actions, or run one by name against an address",
			ArgsUsage: "file [name] [address]",
			Action:    actionCommand,
			Flags:     []cli.Flag{baseFlag, entryFlag},
		},
	}
	app.Run(os.Args)
}
