package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"viralshorts/manager-go/internal/config"
	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/jobs"
	"viralshorts/manager-go/internal/queue"
	"viralshorts/manager-go/internal/utils"
)

// stageJob is what every job:<Stage> command runs.
type stageJob interface {
	Run(ctx context.Context, jctx jobs.JobContext, opts jobs.JobOptions) error
}

var stageJobs = map[string]func() stageJob{
	"job:GenerateConcept":   func() stageJob { return jobs.NewGenerateConceptJob() },
	"job:GenerateScript":    func() stageJob { return jobs.NewGenerateScriptJob() },
	"job:GenerateBroll":     func() stageJob { return jobs.NewGenerateBrollJob() },
	"job:GenerateVoiceover": func() stageJob { return jobs.NewGenerateVoiceoverJob() },
	"job:GenerateMetadata":  func() stageJob { return jobs.NewGenerateMetadataJob() },
	"job:RenderShort":       func() stageJob { return jobs.NewRenderShortJob() },
	"job:UploadYouTube":     func() stageJob { return jobs.NewUploadYouTubeJob() },
	"job:UploadDailymotion": func() stageJob { return jobs.NewUploadDailymotionJob() },
}

func Run(args []string) int {
	// Support a global --verbose flag anywhere in the argv (before or after the command).
	// This is helpful because the stdlib flag parser stops at the first non-flag argument.
	args, globalVerbose := extractGlobalVerbose(args)
	utils.ConfigureLogging(globalVerbose)

	if len(args) < 2 {
		printUsage()
		return 1
	}
	if args[1] == "-h" || args[1] == "--help" || args[1] == "help" {
		printUsage()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	utils.Logf("manager: config loaded env=%s hostname=%s", cfg.AppEnv, cfg.Hostname)

	cmd := args[1]
	cmdArgs := args[2:]
	utils.Logf("manager: cmd=%s args=%v", cmd, cmdArgs)

	var runErr error
	switch cmd {
	case "migrate":
		runErr = runMigrate(ctx, cfg, cmdArgs)
	case "Voices:List":
		runErr = runVoicesList(cmdArgs)
	case "Quota:Status":
		runErr = runQuotaStatus(ctx, cfg, cmdArgs)
	case "Budget:Status":
		runErr = runBudgetStatus(ctx, cfg, cmdArgs)
	case "Variety:TitleStyles":
		runErr = runTitleStyles(ctx, cfg, cmdArgs)
	default:
		runErr = runPipelineCommand(ctx, cfg, cmd, cmdArgs)
	}

	if errors.Is(runErr, errUnknownCommand) {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		return 1
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}
	return 0
}

var errUnknownCommand = errors.New("unknown command")

// runPipelineCommand connects the database (and RabbitMQ when the command hands work
// to other stages) before dispatching.
func runPipelineCommand(ctx context.Context, cfg config.Config, cmd string, args []string) error {
	newJob, isStage := stageJobs[cmd]
	needsQueue := isStage && wantsQueue(args)
	switch cmd {
	case "Batch:Create", "Status:Serve":
		needsQueue = true
	case "Batch:Produce":
	default:
		if !isStage && !isCheckCommand(cmd) {
			return errUnknownCommand
		}
	}

	store, err := db.NewStore(ctx, cfg.DBConnString())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer store.Close()
	utils.Logf("manager: db connected")

	services, err := jobs.NewServices(cfg)
	if err != nil {
		return err
	}
	jctx := jobs.JobContext{Config: cfg, Store: store, Services: services}

	var queueClient *queue.Client
	if needsQueue {
		queueClient, err = queue.New(cfg.RabbitMQURL())
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		defer queueClient.Close()
		utils.Logf("manager: queue connected")
		jctx.Queue = queueClient
	}

	switch cmd {
	case "Batch:Create":
		return runBatchCreate(ctx, jctx, args)
	case "Batch:Produce":
		return runBatchProduce(ctx, jctx, args)
	case "Status:Serve":
		return runStatusServe(ctx, jctx, store, queueClient, args)
	}
	if !isStage {
		return runCheck(ctx, jctx, cmd, args)
	}
	return runStageJob(ctx, jctx, cmd, newJob(), args)
}

// wantsQueue peeks for --queue so RabbitMQ is only dialled when a job consumes it.
func wantsQueue(args []string) bool {
	for _, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "queue" || !strings.HasPrefix(arg, "-") {
			continue
		}
		if !hasValue {
			return true
		}
		parsed, err := strconv.ParseBool(value)
		return err == nil && parsed
	}
	return false
}

func extractGlobalVerbose(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}
	verbose := false
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == "--verbose" || arg == "-verbose":
			verbose = true
			continue
		case strings.HasPrefix(arg, "--verbose="):
			raw := strings.TrimPrefix(arg, "--verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		case strings.HasPrefix(arg, "-verbose="):
			raw := strings.TrimPrefix(arg, "-verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		default:
			out = append(out, arg)
		}
	}
	return out, verbose
}

func parseShortID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid short_id: %s", args[0])
	}
	return id, nil
}

func runStageJob(ctx context.Context, jctx jobs.JobContext, name string, job stageJob, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	once := fs.Bool("once", false, "Handle at most one queue message")
	info := fs.Bool("info", false, "Upload jobs: just show what would be uploaded")
	if err := fs.Parse(args); err != nil {
		return err
	}
	shortID, err := parseShortID(fs.Args())
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{ShortID: shortID, Sleep: *sleep, Queue: *queueFlag, QueueOnce: *once, Info: *info}
	logJobStart(name, opts)
	return job.Run(ctx, jctx, opts)
}

func runBatchCreate(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("Batch:Create", flag.ContinueOnError)
	size := fs.Int("size", jctx.Config.BatchSize, "Number of shorts in the batch")
	hint := fs.String("hint", "", "Optional topic hint passed to concept generation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	batchID, ids, err := jobs.CreateBatch(ctx, jctx, *size, *hint)
	if err != nil {
		return err
	}
	fmt.Printf("batch %s: created shorts %v\n", batchID, ids)
	return nil
}

func runBatchProduce(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("Batch:Produce", flag.ContinueOnError)
	size := fs.Int("size", jctx.Config.BatchSize, "Number of shorts in the batch")
	hint := fs.String("hint", "", "Optional topic hint passed to concept generation")
	uploadFlag := fs.Bool("upload", false, "Upload finished shorts (best to YouTube, all to Dailymotion)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := jobs.ProduceBatch(ctx, jctx, jobs.ProduceOptions{Size: *size, Upload: *uploadFlag, Hint: *hint})
	if len(result.Shorts) > 0 {
		fmt.Println(renderBatchTable(result))
	}
	if err != nil {
		return err
	}
	for _, r := range result.Shorts {
		if r.Err != nil {
			return fmt.Errorf("batch %s finished with failures", result.BatchID)
		}
	}
	return nil
}

func logJobStart(name string, opts jobs.JobOptions) {
	utils.Logf("start %s short_id=%d queue=%t once=%t sleep=%d info=%t", name, opts.ShortID, opts.Queue, opts.QueueOnce, opts.Sleep, opts.Info)
}

func printUsage() {
	fmt.Println("Usage: manager <command> [args]")
	fmt.Println("Global flags:")
	fmt.Println("  --verbose   Enable diagnostic logging (can appear before or after the command).")
	fmt.Println("Commands:")
	fmt.Println("  migrate [up|status] [--dir=migrations] [--dry-run]")
	fmt.Println("  Batch:Create [--size=N] [--hint=TEXT]")
	fmt.Println("  Batch:Produce [--size=N] [--hint=TEXT] [--upload]")
	names := make([]string, 0, len(stageJobs))
	for name := range stageJobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s [short_id] [--sleep=N] [--queue] [--once] [--info]\n", name)
	}
	for _, name := range jobs.CheckNames() {
		fmt.Printf("  %s%s [--dry-run] [--yes]\n", checkPrefix, name)
	}
	fmt.Println("  Quota:Status")
	fmt.Println("  Budget:Status")
	fmt.Println("  Voices:List")
	fmt.Println("  Variety:TitleStyles [style,...]")
	fmt.Println("  Status:Serve [--listen=127.0.0.1:8085]")
}
