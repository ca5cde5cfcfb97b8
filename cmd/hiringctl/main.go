// hiringctl reads and edits the job collection of a running hiring service
// through a local cache that pushes changes back to the server.
//
// Usage:
//
//	hiringctl [flags] list
//	hiringctl [flags] get <job-id>
//	hiringctl [flags] export
//	hiringctl [flags] import <file.json>
//	hiringctl [flags] add-candidate <job-id> <name> [email]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/gartstein/hiring/internal/hiring/cache"
	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errUsage = errors.New("usage: hiringctl [flags] list | get <job-id> | export | import <file> | add-candidate <job-id> <name> [email]")

type options struct {
	server  string
	grpc    string
	token   string
	timeout time.Duration
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("hiringctl", flag.ContinueOnError)
	fs.StringVar(&opts.server, "server", envOr("HIRING_SERVER", "http://localhost:8080"), "HTTP base URL of the hiring service")
	fs.StringVar(&opts.grpc, "grpc", os.Getenv("HIRING_GRPC"), "gRPC address of the hiring service; overrides -server")
	fs.StringVar(&opts.token, "token", os.Getenv("HIRING_TOKEN"), "bearer token for writes")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	fs.BoolVar(&opts.verbose, "v", false, "log synchronizer activity")
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	remote, closeRemote, err := newRemote(opts, logger)
	if err != nil {
		return err
	}
	defer closeRemote()

	var pushed atomic.Int32
	syncer := cache.NewSynchronizer(cache.NewMemoryCache(), remote, cache.Options{
		PushTimeout: opts.timeout,
		OnPushed:    func(string, int) { pushed.Add(1) },
	}, logger)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		col, err := syncer.Jobs(ctx)
		if err != nil {
			return err
		}
		return printJobs(out, col)
	case "get":
		if len(rest) != 1 {
			return errUsage
		}
		job, err := syncer.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out, job)
	case "export":
		col, err := syncer.Jobs(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, col.Jobs)
	case "import":
		if len(rest) != 1 {
			return errUsage
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			return err
		}
		jobs, err := models.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", rest[0], err)
		}
		if _, err := syncer.Jobs(ctx); err != nil {
			return err
		}
		if err := syncer.ReplaceAll(ctx, jobs); err != nil {
			return err
		}
		return confirmPush(syncer, &pushed, out, fmt.Sprintf("imported %d jobs", len(jobs)))
	case "add-candidate":
		if len(rest) < 2 || len(rest) > 3 {
			return errUsage
		}
		c := models.Candidate{Name: rest[1]}
		if len(rest) == 3 {
			c.Email = rest[2]
		}
		saved, err := syncer.UpsertCandidate(ctx, rest[0], c)
		if err != nil {
			return err
		}
		return confirmPush(syncer, &pushed, out, "added candidate "+saved.ID)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func newRemote(opts options, logger *zap.Logger) (cache.Remote, func(), error) {
	if opts.grpc == "" {
		return cache.NewHTTPRemote(opts.server, opts.token, opts.timeout, logger), func() {}, nil
	}
	conn, err := grpc.NewClient(opts.grpc, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", opts.grpc, err)
	}
	return cache.NewGRPCRemote(conn, opts.token, logger), func() { _ = conn.Close() }, nil
}

// confirmPush waits for the background push and reports whether the server
// accepted it. The synchronizer keeps failed pushes in its cache only, which
// dies with this process.
func confirmPush(syncer *cache.Synchronizer, pushed *atomic.Int32, out io.Writer, msg string) error {
	syncer.Wait()
	if pushed.Load() == 0 {
		return errors.New("the server did not accept the change (run with -v for details)")
	}
	_, err := fmt.Fprintln(out, msg)
	return err
}

func printJobs(out io.Writer, col models.Collection) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOMPETENCIES\tQUESTIONS\tCANDIDATES\tDRAFT")
	for _, j := range col.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%t\n",
			j.ID, j.Title, len(j.Competencies), len(j.InterviewQuestions), len(j.Candidates), j.IsDraft)
	}
	fmt.Fprintf(tw, "\nversion %s\n", col.Version)
	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
