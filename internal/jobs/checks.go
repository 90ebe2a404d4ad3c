package jobs

import (
	"context"
	"math"
	"sort"

	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/utils"
)

const checkPageSize = 200

// ArtifactCheck verifies the files a completed stage left behind. Verify reports
// whether the stage must be redone and why.
type ArtifactCheck struct {
	Name   string
	Flag   string
	Verify func(meta map[string]any) (bool, string, error)
	Reset  func(meta map[string]any)
}

type CheckOptions struct {
	// Fix writes the reset back to the store; otherwise flagged shorts are only reported.
	Fix bool
}

type CheckReport struct {
	Checked int
	Valid   int
	Flagged []int64
	Fixed   int
}

// ArtifactChecks returns the checks keyed by name.
func ArtifactChecks() map[string]ArtifactCheck {
	return map[string]ArtifactCheck{
		"Broll": {
			Name:   "Broll",
			Flag:   FlagBrollGenerated,
			Verify: verifyBroll,
			Reset: func(meta map[string]any) {
				delete(meta, metaBroll)
				utils.SetStatus(meta, FlagBrollGenerated, false)
			},
		},
		"Voiceover": {
			Name:   "Voiceover",
			Flag:   FlagVoiceoverGenerated,
			Verify: verifyVoiceover,
			Reset: func(meta map[string]any) {
				delete(meta, metaVoiceover)
				utils.SetStatus(meta, FlagVoiceoverGenerated, false)
			},
		},
		"Rendered": {
			Name:   "Rendered",
			Flag:   FlagShortRendered,
			Verify: verifyRender,
			Reset: func(meta map[string]any) {
				delete(meta, metaRender)
				utils.SetStatus(meta, FlagShortRendered, false)
			},
		},
	}
}

// CheckNames lists the available artifact checks in a stable order.
func CheckNames() []string {
	checks := ArtifactChecks()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func verifyBroll(meta map[string]any) (bool, string, error) {
	var b BrollMeta
	if err := utils.DecodeInto(meta, metaBroll, &b); err != nil {
		return true, "broll meta invalid", nil
	}
	for _, clip := range b.Clips {
		if !utils.FileExists(clip) {
			return true, "broll clip missing: " + clip, nil
		}
	}
	return false, "broll ok", nil
}

func verifyVoiceover(meta map[string]any) (bool, string, error) {
	var vo VoiceoverMeta
	if err := utils.DecodeInto(meta, metaVoiceover, &vo); err != nil || vo.Path == "" {
		return true, "voiceover meta missing", nil
	}
	if !utils.FileExists(vo.Path) {
		return true, "voiceover file missing", nil
	}
	return false, "voiceover ok", nil
}

func verifyRender(meta map[string]any) (bool, string, error) {
	var rm RenderMeta
	if err := utils.DecodeInto(meta, metaRender, &rm); err != nil || rm.Path == "" {
		return true, "render meta missing", nil
	}
	if !utils.FileExists(rm.Path) {
		return true, "rendered file missing", nil
	}
	if rm.SHA256 != "" {
		have, err := utils.SHA256File(rm.Path)
		if err != nil {
			return false, "", err
		}
		if have != rm.SHA256 {
			return true, "rendered file checksum mismatch", nil
		}
	}
	return false, "render ok", nil
}

// lastCompletedStage is the status column value for a short whose flags were rolled back.
func lastCompletedStage(meta map[string]any) string {
	status := "new"
	for _, flag := range StageFlags {
		if done, _ := utils.GetStatus(meta, flag); done {
			status = flag
		}
	}
	return status
}

// RunCheck walks every short whose stage flag is set, newest first, and verifies its
// artifacts. With opts.Fix the stage is rolled back so the pipeline redoes it.
func RunCheck(ctx context.Context, jctx JobContext, check ArtifactCheck, opts CheckOptions) (CheckReport, error) {
	var report CheckReport
	lastID := int64(math.MaxInt64)
	for {
		where := db.Where(db.StatusTrueCondition([]string{check.Flag}), "id < $1")
		shorts, err := jctx.Store.ListShorts(ctx, where, checkPageSize, lastID)
		if err != nil {
			return report, err
		}
		sort.Slice(shorts, func(i, j int) bool { return shorts[i].ID > shorts[j].ID })
		for _, short := range shorts {
			if short.ID >= lastID {
				continue
			}
			lastID = short.ID
			meta, err := utils.DecodeMeta(short.Meta)
			if err != nil {
				return report, err
			}
			if done, _ := utils.GetStatus(meta, check.Flag); !done {
				continue
			}
			needsReset, reason, err := check.Verify(meta)
			if err != nil {
				return report, err
			}
			report.Checked++
			if !needsReset {
				report.Valid++
				utils.Debug("check row", "check", check.Name, "short_id", short.ID, "decision", "valid", "reason", reason)
				continue
			}
			report.Flagged = append(report.Flagged, short.ID)
			utils.Warn("check row", "check", check.Name, "short_id", short.ID, "decision", "flagged", "reason", reason)
			if !opts.Fix {
				continue
			}
			check.Reset(meta)
			if err := jctx.Store.UpdateShortMetaStatus(ctx, short.ID, lastCompletedStage(meta), meta); err != nil {
				return report, err
			}
			report.Fixed++
		}
		if len(shorts) < checkPageSize {
			break
		}
	}
	utils.Info("check summary", "check", check.Name, "checked", report.Checked, "valid", report.Valid, "flagged", len(report.Flagged), "updated", report.Fixed)
	return report, nil
}
