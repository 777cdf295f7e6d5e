// Package extractor implements spec.md's C9: the single-pass sequential
// driver that ties the index parser, chunk assembler, path recovery and
// router together into one extraction run.
package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/b2extract/pkg/archive"
	"github.com/user/b2extract/pkg/codec"
	"github.com/user/b2extract/pkg/pathrecovery"
	"github.com/user/b2extract/pkg/router"
)

// Run executes one complete extraction: opens the index, walks its name
// table, and for every non-directory record attempts filter, parse,
// assemble, recover, route and write, in that order. A single entry's
// failure is logged as a warning and the loop continues (spec.md §7); Run
// itself only returns an error for the handful of conditions that prevent
// the loop from starting at all.
func Run(cfg Config, cb Callbacks) error {
	if cfg.OutputDirectory == "" {
		return fmt.Errorf("extractor: outputDirectory is required")
	}
	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		return fmt.Errorf("extractor: create output directory: %w", err)
	}

	sideLogFile, err := os.Create(filepath.Join(cfg.OutputDirectory, sideLogName(time.Now())))
	if err != nil {
		return fmt.Errorf("extractor: create side log: %w", err)
	}
	defer sideLogFile.Close()

	rl := &runLog{level: cfg.LogLevel, sideLog: sideLogFile, cb: cb.Log}

	idx, err := archive.Open(cfg.IndexPath, cfg.ContainerExt)
	if err != nil {
		rl.errorf("open index %s: %v", cfg.IndexPath, err)
		return err
	}
	defer idx.Close()

	var existing *router.ExistingIndex
	if cfg.SkipExistingFiles {
		existing, err = router.BuildExistingIndex(cfg.OutputDirectory)
		if err != nil {
			rl.errorf("build existing-output index: %v", err)
			return err
		}
	}

	rtr := router.New(router.Config{
		OutputDirectory:   cfg.OutputDirectory,
		SkipWemFiles:      cfg.SkipWemFiles,
		SkipBinkFiles:     cfg.SkipBinkFiles,
		SkipExistingFiles: cfg.SkipExistingFiles,
		SkipResAndAce:     cfg.SkipResAndAce,
		SkipConfigFiles:   cfg.SkipConfigFiles,
		OnlyAssets:        cfg.OnlyAssets,
	}, existing)

	var decoder *codec.Decoder
	onCodecWarning := func(msg string) { rl.warning("%s", msg) }
	if cfg.CodecDisabledReason != "" {
		decoder = codec.NewDisabledDecoder(cfg.CodecDisabledReason, onCodecWarning)
	} else {
		decoder = codec.NewDecoder(onCodecWarning)
	}

	records, _ := idx.WalkNames()
	files := make([]archive.NameRecord, 0, len(records))
	for _, rec := range records {
		if !rec.IsDirectory() {
			files = append(files, rec)
		}
	}

	containers := archive.NewContainerReader()
	defer containers.Close()

	total := len(files)
	for i, rec := range files {
		if cb.Progress != nil {
			cb.Progress(float64(i+1) / float64(total) * 100)
		}
		processEntry(idx, containers, decoder, rtr, rl, cfg, rec)
	}

	if err := rtr.Reconcile(func(msg string) { rl.info("%s", msg) }); err != nil {
		rl.errorf("bulk reconcile pass: %v", err)
	}

	rl.completion("extraction complete (%d entries processed)", total)
	return nil
}

func processEntry(idx *archive.Index, containers *archive.ContainerReader, decoder *codec.Decoder, rtr *router.Router, rl *runLog, cfg Config, rec archive.NameRecord) {
	ext := strings.ToLower(filepath.Ext(rec.Name))
	basename := filepath.Base(rec.Name)
	stem := strings.TrimSuffix(basename, filepath.Ext(basename))
	logicalDir := filepath.ToSlash(filepath.Dir(rec.Name))
	if logicalDir == "." {
		logicalDir = ""
	}

	if skip, reason := rtr.PreFilter(basename, ext, logicalDir, ""); skip {
		rl.skip(rec.Name, reason)
		return
	}

	entryRow, err := idx.EntryRow(int(rec.FileNumber))
	if err != nil {
		rl.warning("%s: %v", rec.Name, err)
		return
	}
	block, err := idx.ResolveBlock(entryRow.BlockOffset)
	if err != nil {
		rl.warning("%s: %v", rec.Name, err)
		return
	}
	chunks, totalUncompressed, err := idx.ChunkList(block)
	if err != nil {
		rl.warning("%s: %v", rec.Name, err)
		return
	}

	needed := archive.NeededLength(totalUncompressed, entryRow.AbsOffset, entryRow.AbsSize)
	window, err := archive.Assemble(containers, decoder, block, chunks, needed)
	if err != nil {
		rl.warning("%s: %v", rec.Name, err)
		return
	}
	payload, err := archive.ExtractPayload(window, entryRow.AbsOffset, entryRow.AbsSize)
	if err != nil {
		rl.warning("%s: %v", rec.Name, err)
		return
	}

	containerName := filepath.Base(block.ContainerPath)

	var suggestedDir string
	var class pathrecovery.Class
	if pathrecovery.Recoverable(ext) {
		if res, ok := pathrecovery.Recover(payload, stem, cfg.EnableHeaderPath, cfg.EnableContentPath); ok {
			suggestedDir = directoryFromRecoveredPath(pathrecovery.Sanitize(res.Path), stem)
			class = res.Class
		}
	}

	decision := rtr.Route(router.Entry{
		Basename:      stem + ext,
		Ext:           ext,
		Stem:          stem,
		SuggestedDir:  suggestedDir,
		ContainerName: containerName,
		RecoveryClass: class,
	})
	if decision.Skip {
		rl.skip(rec.Name, decision.SkipReason)
		return
	}

	if err := os.MkdirAll(filepath.Dir(decision.AbsolutePath), 0o755); err != nil {
		rl.warning("%s: create output directory: %v", rec.Name, err)
		return
	}
	if err := os.WriteFile(decision.AbsolutePath, payload, 0o644); err != nil {
		rl.warning("%s: write output: %v", rec.Name, err)
		return
	}

	rl.info("📦 %s -> %s", rec.Name, decision.RelativePath)
}

// directoryFromRecoveredPath drops a trailing segment matching stem from a
// sanitized recovered path, since both recovery strategies return a path
// whose last segment is typically the asset's own name; the router wants
// only the directory portion.
func directoryFromRecoveredPath(path, stem string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	if strings.EqualFold(segments[len(segments)-1], stem) {
		segments = segments[:len(segments)-1]
	}
	return strings.Join(segments, "/")
}

func sideLogName(t time.Time) string {
	return fmt.Sprintf("extract_log_%s.log", t.Format("20060102_150405"))
}
