package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"convcli/internal/application/dispatch"
	"convcli/internal/application/poll"
	"convcli/internal/config"
	"convcli/internal/domain/job"
	"convcli/internal/infrastructure/convapi"
	"convcli/internal/infrastructure/download"
	"convcli/internal/infrastructure/mailer"
	"convcli/internal/infrastructure/redishook"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type app struct {
	cfg        config.Config
	log        *logrus.Logger
	client     *convapi.Client
	poller     *poll.Service
	downloads  *download.Client
	dispatcher *dispatch.Service
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.WarnLevel)

	client := convapi.NewClient(cfg.APIBaseURL, log)
	downloads := download.NewClient()

	var mail dispatch.Mailer
	if cfg.SMTPAddr != "" {
		mail = mailer.New(cfg.SMTPAddr, cfg.SMTPFrom)
	}
	var hook dispatch.PersistenceHook
	if cfg.RedisAddr != "" {
		hook = redishook.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 24*time.Hour)
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		client:    client,
		poller:    poll.NewService(client, log),
		downloads: downloads,
		dispatcher: dispatch.NewService(dispatch.Config{
			AutoDownload:     cfg.AutoDownload,
			OutputDir:        cfg.OutputDir,
			DefaultRecipient: cfg.NotifyRecipient,
			AdminRecipient:   cfg.AdminRecipient,
		}, downloads, mail, hook, log),
	}

	var err error
	switch os.Args[1] {
	case "convert":
		err = a.convert(os.Args[2:])
	case "convert-url":
		err = a.convertURL(os.Args[2:])
	case "wait":
		err = a.wait(os.Args[2:])
	case "status":
		err = a.status(os.Args[2:])
	case "cancel":
		err = a.cancel(os.Args[2:])
	case "delete":
		err = a.deleteResult(os.Args[2:])
	case "formats":
		err = a.formats(os.Args[2:])
	case "check":
		err = a.check(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: convcli <command> [flags]

commands:
  convert      submit a local file for conversion and wait for the result
  convert-url  submit a remote URL for conversion and wait for the result
  wait         resume waiting on a previously submitted job
  status       print the current snapshot of a job
  cancel       ask the server to cancel a job
  delete       permanently delete a completed job's stored result
  formats      list known formats, or targets reachable from one
  check        ask whether one format converts into another`)
}

func (a *app) convert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	to := fs.String("to", "", "target format (required)")
	from := fs.String("from", "", "source format hint")
	out := fs.String("out", "", "write the result to this path")
	noWait := fs.Bool("no-wait", false, "submit and print the job id without waiting")
	notify := fs.String("notify", "", "notify this address when the job finishes")
	correlation := fs.String("correlation", "", "correlation id passed through to notifications")
	_ = fs.Parse(args)

	if *to == "" || fs.NArg() != 1 {
		return errors.New("usage: convcli convert -to <format> [flags] <file>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	meta := buildMetadata(*notify, *correlation)
	ctx := context.Background()

	var submitted job.Job
	if info.Size() > a.cfg.ChunkThresholdBytes {
		fmt.Fprintf(os.Stderr, "file is %d bytes, using chunked upload\n", info.Size())
		submitted, err = a.client.UploadFile(ctx, a.cfg.APIKey, convapi.UploadRequest{
			Filename:     filepath.Base(path),
			Data:         f,
			Size:         info.Size(),
			ChunkSize:    a.cfg.ChunkSizeBytes,
			SourceFormat: *from,
			TargetFormat: *to,
			Metadata:     meta,
		})
	} else {
		submitted, err = a.client.Convert(ctx, a.cfg.APIKey, convapi.ConvertRequest{
			Filename:     filepath.Base(path),
			Data:         f,
			SourceFormat: *from,
			TargetFormat: *to,
			Metadata:     meta,
		})
	}
	if err != nil {
		return err
	}

	if *noWait && !submitted.Terminal() {
		fmt.Printf("job %s submitted; resume with: convcli wait -id %s\n", submitted.ID, submitted.ID)
		return nil
	}
	return a.finish(ctx, submitted, *out)
}

func (a *app) convertURL(args []string) error {
	fs := flag.NewFlagSet("convert-url", flag.ExitOnError)
	src := fs.String("url", "", "source URL (required)")
	to := fs.String("to", "", "target format (required)")
	from := fs.String("from", "", "source format hint")
	out := fs.String("out", "", "write the result to this path")
	noWait := fs.Bool("no-wait", false, "submit and print the job id without waiting")
	notify := fs.String("notify", "", "notify this address when the job finishes")
	correlation := fs.String("correlation", "", "correlation id passed through to notifications")
	_ = fs.Parse(args)

	if *src == "" || *to == "" {
		return errors.New("usage: convcli convert-url -url <source> -to <format> [flags]")
	}

	ctx := context.Background()
	submitted, err := a.client.ConvertURL(ctx, a.cfg.APIKey, convapi.ConvertURLRequest{
		SourceURL:    *src,
		SourceFormat: *from,
		TargetFormat: *to,
		Metadata:     buildMetadata(*notify, *correlation),
	})
	if err != nil {
		return err
	}

	if *noWait && !submitted.Terminal() {
		fmt.Printf("job %s submitted; resume with: convcli wait -id %s\n", submitted.ID, submitted.ID)
		return nil
	}
	return a.finish(ctx, submitted, *out)
}

func (a *app) wait(args []string) error {
	fs := flag.NewFlagSet("wait", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	out := fs.String("out", "", "write the result to this path")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("usage: convcli wait -id <job-id> [-out <path>]")
	}
	ctx := context.Background()
	return a.finish(ctx, job.Job{ID: *id, State: job.StateQueued}, *out)
}

func (a *app) status(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("usage: convcli status -id <job-id>")
	}

	j, err := a.client.FetchStatus(context.Background(), a.cfg.APIKey, *id)
	if err != nil {
		return err
	}
	printJob(j)
	return nil
}

func (a *app) cancel(args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("usage: convcli cancel -id <job-id>")
	}

	err := a.client.Cancel(context.Background(), a.cfg.APIKey, *id)
	switch {
	case err == nil:
		fmt.Printf("job %s cancelled\n", *id)
		return nil
	case job.HasCode(err, job.CodeJobAlreadyCompleted):
		fmt.Printf("job %s already completed, nothing to cancel\n", *id)
		return nil
	case job.HasCode(err, job.CodeJobAlreadyCancelled):
		fmt.Printf("job %s was already cancelled\n", *id)
		return nil
	default:
		return err
	}
}

func (a *app) deleteResult(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("usage: convcli delete -id <job-id>")
	}

	err := a.client.DeleteResult(context.Background(), a.cfg.APIKey, *id)
	switch {
	case err == nil:
		fmt.Printf("stored result of job %s deleted\n", *id)
		return nil
	case job.HasCode(err, job.CodeFileAlreadyDeleted):
		fmt.Printf("result of job %s was already deleted\n", *id)
		return nil
	default:
		return err
	}
}

func (a *app) formats(args []string) error {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)
	from := fs.String("from", "", "list targets reachable from this format")
	_ = fs.Parse(args)

	ctx := context.Background()
	var list []string
	var err error
	if *from == "" {
		list, err = a.client.ListFormats(ctx)
	} else {
		list, err = a.client.ListConversionsFrom(ctx, *from)
	}
	if err != nil {
		return err
	}
	for _, f := range list {
		fmt.Println(f)
	}
	return nil
}

func (a *app) check(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	from := fs.String("from", "", "source format (required)")
	to := fs.String("to", "", "target format (required)")
	_ = fs.Parse(args)

	if *from == "" || *to == "" {
		return errors.New("usage: convcli check -from <format> -to <format>")
	}

	decision, err := a.client.CheckConversion(context.Background(), *from, *to)
	if err != nil {
		return err
	}
	if decision.Supported {
		fmt.Printf("%s converts to %s\n", *from, *to)
	} else if decision.Reason != "" {
		fmt.Printf("%s does not convert to %s: %s\n", *from, *to, decision.Reason)
	} else {
		fmt.Printf("%s does not convert to %s\n", *from, *to)
	}
	return nil
}

// finish drives a submitted job to its terminal state and reports it. A
// submission that came back already completed (cache hit) skips polling
// entirely.
func (a *app) finish(ctx context.Context, submitted job.Job, out string) error {
	final, err := a.poller.AwaitSubmitted(ctx, a.cfg.APIKey, submitted, poll.Options{
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.MaxAttempts,
		OnProgress: func(j job.Job) {
			fmt.Fprintf(os.Stderr, "job %s: %s\n", j.ID, j.RawState)
		},
	})
	if err != nil {
		var timeout *job.TimeoutError
		if errors.As(err, &timeout) {
			// A local timeout is not a cancellation: the job keeps
			// running server-side and polling can resume.
			return fmt.Errorf("%v; resume with: convcli wait -id %s", timeout, timeout.JobID)
		}
		return err
	}

	switch final.State {
	case job.StateCompleted:
		fmt.Printf("completed: %s\n", final.Result.DownloadURL)
		a.dispatcher.JobCompleted(ctx, final)
		if out != "" {
			if err := a.downloads.Download(ctx, final.Result.DownloadURL, out); err != nil {
				return err
			}
			fmt.Printf("saved to %s\n", out)
		}
		return nil
	case job.StateFailed:
		a.dispatcher.JobFailed(ctx, final)
		if final.Failure != nil {
			if final.Failure.Code != "" {
				return fmt.Errorf("conversion failed [%s]: %s", final.Failure.Code, final.Failure.Message)
			}
			return fmt.Errorf("conversion failed: %s", final.Failure.Message)
		}
		return errors.New("conversion failed")
	case job.StateCancelled:
		fmt.Printf("job %s was cancelled\n", final.ID)
		return nil
	default:
		return fmt.Errorf("unexpected terminal state %q", final.State)
	}
}

func buildMetadata(notify, correlation string) map[string]any {
	if notify == "" && correlation == "" {
		return nil
	}
	meta := map[string]any{}
	if notify != "" {
		meta[job.MetaRecipientAddress] = notify
	}
	if correlation != "" {
		meta[job.MetaCorrelationID] = correlation
	}
	return meta
}

func printJob(j job.Job) {
	fmt.Printf("job:    %s\n", j.ID)
	fmt.Printf("state:  %s\n", j.RawState)
	if j.SourceFormat != "" || j.TargetFormat != "" {
		fmt.Printf("conversion: %s -> %s\n", j.SourceFormat, j.TargetFormat)
	}
	if j.Result != nil {
		fmt.Printf("download:   %s\n", j.Result.DownloadURL)
		fmt.Printf("size:       %d bytes\n", j.Result.FileSizeBytes)
		fmt.Printf("expires:    %s\n", j.Result.ExpiresAt.Format(time.RFC3339))
	}
	if j.Failure != nil {
		if j.Failure.Code != "" {
			fmt.Printf("error:      [%s] %s\n", j.Failure.Code, j.Failure.Message)
		} else {
			fmt.Printf("error:      %s\n", j.Failure.Message)
		}
	}
}
