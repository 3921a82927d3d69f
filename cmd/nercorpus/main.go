// Command nercorpus builds named-entity training corpora. It aligns raw
// text with sense overlays, merges gold and predicted entity layers, and
// scores tagged output.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/FocuswithJustin/nercorpus/core/sqlite"
	"github.com/FocuswithJustin/nercorpus/internal/logging"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"NERCORPUS_LOG_LEVEL" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" env:"NERCORPUS_LOG_FORMAT" help:"Log format (text, json)"`
	Registry  string `name:"registry" env:"NERCORPUS_REGISTRY" help:"SQLite run registry; empty disables run recording"`
	Workers   int    `name:"workers" short:"w" default:"0" env:"NERCORPUS_WORKERS" help:"Parallel file workers (0 = number of CPUs)"`

	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Corpus   CorpusGroup `cmd:"" help:"Corpus assembly and layer combination"`
	Tokenize TokenizeCmd `cmd:"" help:"Tokenize text the way the aligner does"`
	Evaluate EvaluateCmd `cmd:"" help:"Score tagged rows against expected labels"`
	Runs     RunsGroup   `cmd:"" help:"Inspect the run registry"`
	Bundle   BundleGroup `cmd:"" help:"Output bundle operations"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// CorpusGroup contains corpus building operations.
type CorpusGroup struct {
	Assemble AssembleCmd `cmd:"" help:"Align Reuters text with SemDoc overlays into training rows"`
	Combine  CombineCmd  `cmd:"" help:"Add a predicted entity layer to ENAMEX training files"`
}

// RunsGroup contains registry queries.
type RunsGroup struct {
	List RunsListCmd `cmd:"" help:"List recorded runs, newest first"`
	Show RunsShowCmd `cmd:"" help:"Show one run with its drops, documents and scores"`
}

// BundleGroup contains bundle operations.
type BundleGroup struct {
	Verify BundleVerifyCmd `cmd:"" help:"Check bundle files against their manifest fingerprints"`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(g.stdout, "nercorpus version %s\n", version)
	fmt.Fprintf(g.stdout, "  sqlite driver: %s (%s)\n", info.DriverName, info.DriverType)
	return nil
}

func (g *Globals) setupLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// envFiles lists the dotenv files read before flags are parsed.
func envFiles() []string {
	if f := os.Getenv("NERCORPUS_ENV_FILE"); f != "" {
		return strings.Split(f, string(os.PathListSeparator))
	}
	return []string{".env"}
}

// loadEnv loads every existing file. Variables already set in the
// environment win.
func loadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func newParser(cli *CLI, stdout io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("nercorpus"),
		kong.Description("Named-entity training corpus toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, os.Stderr),
	)
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, stdout)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	if err := cli.setupLogging(); err != nil {
		return err
	}
	cli.ctx = ctx
	cli.stdin = stdin
	cli.stdout = stdout
	return kctx.Run(&cli.Globals)
}

func main() {
	if err := loadEnv(envFiles()...); err != nil {
		fmt.Fprintln(os.Stderr, "nercorpus:", err)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "nercorpus:", err)
		os.Exit(1)
	}
}
