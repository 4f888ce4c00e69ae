// Command teng renders and checks teng templates from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	teng "github.com/seznam/teng-sub003"
)

var logger = loggo.GetLogger("teng.cli")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "teng",
		Short:   "Compile and render teng templates",
		Version: teng.Version,
	}
	root.AddCommand(newCheckCmd(), newRenderCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [template]",
		Short: "Compile a template and print its diagnostics and disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			prog, diag, _ := teng.CompileString(args[0], string(data))
			fmt.Print(teng.DumpDiagnostics(diag))
			fmt.Print(teng.Disassemble(prog))
			if diag.HasFatal() {
				return fmt.Errorf("teng: %s failed to compile", args[0])
			}
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	var baseDir string
	var dictFile string
	var watch bool

	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template against an empty data tree and print the output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := teng.DefaultConfig()
			cfg.BaseDir = baseDir
			cfg.DictionaryFile = dictFile
			cfg.Watch = watch

			e, err := teng.New(cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.RenderFile(args[0], teng.NewFragment())
			if err != nil {
				fmt.Fprint(os.Stderr, teng.DumpDiagnostics(res.Diagnostics))
				return err
			}
			fmt.Print(res.Output)
			if watch {
				logger.Infof("watching %s for changes; press Ctrl+C to exit", baseDir)
				waitForever()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "template root directory")
	cmd.Flags().StringVar(&dictFile, "dict", "", "dictionary YAML file for #{key} lookups")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep the process running after rendering (does not re-render)")
	return cmd
}

func waitForever() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer w.Close()
	select {}
}
