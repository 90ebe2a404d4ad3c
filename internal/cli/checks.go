package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"viralshorts/manager-go/internal/jobs"
	"viralshorts/manager-go/internal/utils"
)

const checkPrefix = "Check:"

func isCheckCommand(cmd string) bool {
	if !strings.HasPrefix(cmd, checkPrefix) {
		return false
	}
	_, ok := jobs.ArtifactChecks()[strings.TrimPrefix(cmd, checkPrefix)]
	return ok
}

func runCheck(ctx context.Context, jctx jobs.JobContext, cmd string, args []string) error {
	check := jobs.ArtifactChecks()[strings.TrimPrefix(cmd, checkPrefix)]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report flagged shorts without resetting them")
	yes := fs.Bool("yes", false, "Reset flagged shorts without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := jobs.RunCheck(ctx, jctx, check, jobs.CheckOptions{})
	if err != nil {
		return err
	}
	if len(report.Flagged) == 0 || *dryRun {
		fmt.Printf("%s: checked %d, flagged %d %v\n", check.Name, report.Checked, len(report.Flagged), report.Flagged)
		return nil
	}
	if !*yes {
		answer, err := utils.Prompt(fmt.Sprintf("Reset %s on %d short(s)? [y/N]", check.Flag, len(report.Flagged)))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Nothing changed")
			return nil
		}
	}

	report, err = jobs.RunCheck(ctx, jctx, check, jobs.CheckOptions{Fix: true})
	if err != nil {
		return err
	}
	fmt.Printf("Fixed %d rows\n", report.Fixed)
	return nil
}
