package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"hackmd-go/internal/app"
	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/hackmd"
)

// AppFactory builds the application on first use, so that commands such as
// version work without configuration.
type AppFactory func() (*app.App, error)

type env struct {
	factory AppFactory
	compact bool

	once sync.Once
	app  *app.App
	err  error
}

func (e *env) App() (*app.App, error) {
	e.once.Do(func() { e.app, e.err = e.factory() })
	return e.app, e.err
}

func (e *env) client() (*hackmd.Client, error) {
	a, err := e.App()
	if err != nil {
		return nil, err
	}
	return a.Client()
}

func (e *env) close() {
	if e.app != nil {
		_ = e.app.Close()
	}
}

func (e *env) print(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !e.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// NewRootCommand creates the hackmd command tree.
func NewRootCommand(version string, factory AppFactory) *cobra.Command {
	return newRoot(version, &env{factory: factory})
}

// Execute runs the command line with args and returns the exit code.
func Execute(ctx context.Context, version string, factory AppFactory, args []string, stdout, stderr io.Writer) int {
	e := &env{factory: factory}
	root := newRoot(version, e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	e.close()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

func newRoot(version string, e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "hackmd",
		Short: "Command line client for the HackMD API",
		Long: `Command line client for the HackMD API.

Configuration is read from the environment and an optional .env file.
HACKMD_ACCESS_TOKEN is required for every command that talks to the API.
Results are printed to stdout as JSON; logs go to stderr.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&e.compact, "compact", false, "Print JSON on a single line")

	root.AddCommand(
		newMeCommand(e),
		newHistoryCommand(e),
		newNotesCommand(e),
		newTeamsCommand(e),
		newSyncCommand(e),
		newMirrorCommand(e),
		NewVersionCommand(version),
	)
	return root
}

// Exit codes by error kind.
const (
	ExitOK = iota
	ExitError
	ExitValidation
	ExitAuthentication
	ExitNotFound
	ExitRateLimited
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return ExitValidation
	case apierr.KindAuthentication:
		return ExitAuthentication
	case apierr.KindNotFound:
		return ExitNotFound
	case apierr.KindRateLimited:
		return ExitRateLimited
	default:
		return ExitError
	}
}

// readContent returns literal when set, otherwise the contents of path
// ("-" reads stdin).
func readContent(cmd *cobra.Command, literal, path string) (string, bool, error) {
	switch {
	case literal != "" && path != "":
		return "", false, apierr.Validation("--content and --content-file are mutually exclusive")
	case path == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), true, err
	case path != "":
		b, err := os.ReadFile(path)
		return string(b), true, err
	case cmd.Flags().Changed("content"):
		return literal, true, nil
	default:
		return "", false, nil
	}
}
