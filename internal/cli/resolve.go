package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/history"
	"github.com/guiyumin/unmark/internal/core/i18n"
	"github.com/guiyumin/unmark/internal/core/logx"
	"golang.org/x/term"
)

func runResolve(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadOrDefault()
	if captureMode != "" {
		cfg.Capture.Mode = string(extractor.ParseCaptureMode(captureMode))
	}
	t := i18n.T(cfg.Language)

	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}

	human := !jsonOutput && term.IsTerminal(int(os.Stdout.Fd()))
	if human {
		fmt.Fprintln(os.Stderr, color.New(color.Faint).Sprint(t.CLI.Resolving))
	}

	out, err := pipeline.Resolve(ctx, text, cookie)
	if err != nil {
		if msg := reason(t, err); msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}

	if cfg.History.Enabled && !noHistory {
		recordHistory(ctx, cfg, out)
	}

	if human {
		printOutcome(os.Stdout, t, out)
		return nil
	}
	return writeJSON(os.Stdout, out)
}

// recordHistory saves a successful resolution; failures only get logged
func recordHistory(ctx context.Context, cfg *config.Config, out *extractor.Outcome) {
	log := logx.FromContext(ctx)
	path, err := cfg.HistoryPath()
	if err != nil {
		log.Warn().Err(err).Msg("history path unavailable")
		return
	}
	store, err := history.Open(path, cfg.History.Limit)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("history unavailable")
		return
	}
	defer store.Close()

	err = store.Add(ctx, history.Entry{
		Platform:  string(out.Platform),
		NoteID:    out.NoteID,
		TargetURL: out.TargetURL,
		ImageURL:  out.ImageURL,
		Images:    len(out.AllImages),
	})
	if err != nil {
		log.Warn().Err(err).Msg("history not saved")
	}
}

// reason returns the localized explanation for a pipeline error
func reason(t *i18n.Translations, err error) string {
	switch extractor.CodeOf(err) {
	case extractor.CodeInput:
		return t.Errors.NoURL
	case extractor.CodeNetwork:
		var ne *extractor.NetworkError
		if errors.As(err, &ne) && ne.Timeout() {
			return t.Errors.Timeout
		}
		return t.Errors.Network
	case extractor.CodeNotFound:
		return t.Errors.NotFound
	}
	return ""
}

func writeJSON(w io.Writer, out *extractor.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func printOutcome(w io.Writer, t *i18n.Translations, out *extractor.Outcome) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	bold.Fprintf(w, "%s: ", t.CLI.Chosen)
	green.Fprintln(w, out.ImageURL)

	bold.Fprintf(w, "%s: ", t.CLI.Platform)
	fmt.Fprintln(w, out.Platform)
	if out.NoteID != "" {
		bold.Fprintf(w, "%s: ", t.CLI.NoteID)
		fmt.Fprintln(w, out.NoteID)
	}
	bold.Fprintf(w, "%s: ", t.CLI.Target)
	faint.Fprintln(w, out.TargetURL)

	if len(out.AllImages) > 1 {
		fmt.Fprintln(w)
		bold.Fprintf(w, "%s (%d):\n", t.CLI.Candidates, len(out.AllImages))
		for i, u := range out.AllImages {
			cyan.Fprintf(w, "  [%d] ", i+1)
			fmt.Fprintln(w, u)
		}
	}
}
