package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/logx"
	"github.com/guiyumin/unmark/internal/core/version"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cookie      string
	jsonOutput  bool
	captureMode string
	verbose     bool
	noHistory   bool
)

var rootCmd = &cobra.Command{
	Use:   "unmark [share text...]",
	Short: "Find the watermark-free image behind a Xiaohongshu or Douyin share link",
	Long: `Paste the share text copied from the app; the link inside it is found,
followed and resolved to the original image URL.

Examples:
  unmark "64 看看这篇笔记 http://xhslink.com/a/AbCdEf 复制本条信息"
  pbpaste | unmark --json
  unmark --cookie "web_session=..." http://xhslink.com/a/AbCdEf`,
	Version: version.Version,
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts := logx.Options{Format: "console"}
		if verbose {
			opts.Level = "debug"
		}
		logx.Init(opts)
	},
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")
		if text == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
			data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			cmd.Help()
			return
		}
		if err := runResolve(cmd.Context(), text); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCode(err))
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&cookie, "cookie", "", "cookie header to send (for notes that need a login)")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	rootCmd.Flags().StringVar(&captureMode, "capture", "", "headless-browser capture: always, fallback or off")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this lookup in the history")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadPipeline builds the pipeline from config.yml and platforms.yml
func loadPipeline(cfg *config.Config) (*extractor.Pipeline, error) {
	platforms, err := config.LoadPlatforms()
	if err != nil {
		return nil, err
	}
	extractor.DefaultRegistry.ApplyOverrides(platforms)
	return extractor.NewFromConfig(cfg), nil
}

// exitCode distinguishes bad input from lookup failures for scripts
func exitCode(err error) int {
	switch extractor.CodeOf(err) {
	case extractor.CodeInput:
		return 2
	case extractor.CodeNetwork:
		return 3
	case extractor.CodeNotFound:
		return 4
	}
	return 1
}
