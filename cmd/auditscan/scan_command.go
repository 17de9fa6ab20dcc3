package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/application/auditsession"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scanOptions struct {
	codeType string
	complete bool
	note     string
	attach   []string
	engine   auditsession.Config
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	opts := scanOptions{engine: auditsession.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "scan <audit-id>",
		Short: "Read codes from stdin and record them against an audit",
		Long: "Reads one code per line until EOF. Counts are printed as codes resolve. " +
			"With --complete the audit is closed once every scan is saved.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAuditID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			engine := auditsession.NewEngine(client, opts.engine, ctx.logger())
			if _, err := engine.Resume(cmd.Context(), id); err != nil {
				return fmt.Errorf("resume audit: %w", err)
			}
			defer engine.End()

			return runScan(cmd, engine, opts, ctx.logger())
		},
	}

	cmd.Flags().StringVar(&opts.codeType, "code-type", "qr", "Symbology reported for every code")
	cmd.Flags().BoolVar(&opts.complete, "complete", false, "Complete the audit after the last code")
	cmd.Flags().StringVar(&opts.note, "note", "", "Completion note")
	cmd.Flags().StringSliceVar(&opts.attach, "attach", nil, "Photo to attach on completion (repeatable)")
	cmd.Flags().IntVar(&opts.engine.MaxAttempts, "max-attempts", opts.engine.MaxAttempts, "Failed saves before a scan is parked")
	cmd.Flags().DurationVar(&opts.engine.ResolveTimeout, "resolve-timeout", opts.engine.ResolveTimeout, "Code lookup timeout")
	cmd.Flags().DurationVar(&opts.engine.WriteTimeout, "write-timeout", opts.engine.WriteTimeout, "Scan save timeout")
	return cmd
}

func runScan(cmd *cobra.Command, engine *auditsession.Engine, opts scanOptions, log *zap.Logger) error {
	ctx := cmd.Context()
	out := &lockedWriter{w: cmd.OutOrStdout()}

	snap := engine.Snapshot()
	fmt.Fprintf(out, "Scanning %q: %d expected, %d already found\n",
		snap.Session.Name, snap.Counts.Expected, snap.Counts.Found)

	var (
		mu   sync.Mutex
		last = snap.Counts
	)
	unsubscribe := engine.Subscribe(func(auditsession.Token) {
		c := engine.Snapshot().Counts
		mu.Lock()
		defer mu.Unlock()
		if c == last {
			return
		}
		last = c
		fmt.Fprintf(out, "found %d/%d  missing %d  unexpected %d\n", c.Found, c.Expected, c.Missing, c.Unexpected)
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := engine.Ingest(ctx, auditsession.ScanEvent{Code: line, CodeType: opts.codeType})
		switch {
		case errors.Is(err, shared.ErrDecode):
			continue
		case err != nil:
			return fmt.Errorf("ingest %q: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read codes: %w", err)
	}

	if err := engine.Flush(ctx); err != nil {
		return fmt.Errorf("flush scans: %w", err)
	}
	if parked := len(engine.Snapshot().Parked); parked > 0 {
		log.Warn("Retrying scans that failed to save", zap.Int("count", parked))
		engine.Retry()
		if err := engine.Flush(ctx); err != nil {
			return fmt.Errorf("flush scans: %w", err)
		}
	}
	unsubscribe()

	snap = engine.Snapshot()
	if problems := problemsTable(snap.Items); problems != "" {
		fmt.Fprintln(out, problems)
	}

	if !opts.complete {
		fmt.Fprintln(out, checklistTable(engine.Reconciliation().Checklist()))
		fmt.Fprintln(out, countsTable(snap.Counts))
		return nil
	}

	uploads, closers, err := openAttachments(opts.attach)
	defer closeAll(closers)
	if err != nil {
		return err
	}
	done, err := engine.Complete(ctx, auditsession.CompletionInput{Note: opts.note, Attachments: uploads})
	if err != nil {
		return fmt.Errorf("complete audit: %w", err)
	}
	fmt.Fprintf(out, "Audit %s completed with %d attachment(s)\n", done.ID, len(done.Attachments))
	fmt.Fprintln(out, countsTable(audit.Counts{
		Expected:   done.ExpectedAssetCount,
		Found:      done.FoundAssetCount,
		Missing:    done.MissingAssetCount,
		Unexpected: done.UnexpectedAssetCount,
	}))
	return nil
}

func openAttachments(paths []string) ([]appaudit.AttachmentUpload, []io.Closer, error) {
	uploads := make([]appaudit.AttachmentUpload, 0, len(paths))
	closers := make([]io.Closer, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, closers, fmt.Errorf("open attachment: %w", err)
		}
		closers = append(closers, f)
		info, err := f.Stat()
		if err != nil {
			return nil, closers, fmt.Errorf("stat attachment: %w", err)
		}
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, appaudit.AttachmentUpload{
			Filename:    filepath.Base(p),
			ContentType: contentType,
			Size:        info.Size(),
			Body:        f,
		})
	}
	return uploads, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
