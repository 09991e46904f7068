// Package retention prunes exported CSV files once they age past the
// configured retention window.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FileInfo describes one CSV file found under the export directory.
type FileInfo struct {
	Path         string    `json:"path"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	ModifiedTime time.Time `json:"modified_time"`
	Old          bool      `json:"is_old"`
}

// Analysis splits the discovered files by age against the retention
// threshold.
type Analysis struct {
	TotalFiles         int        `json:"total_files"`
	OldFiles           []FileInfo `json:"old_files"`
	RecentFiles        []FileInfo `json:"recent_files"`
	RetentionThreshold time.Time  `json:"retention_threshold"`
	RetentionDays      int        `json:"retention_days"`
}

// Report is the outcome of one cleanup pass. In dry-run mode deleted
// counts reflect what a real run would remove; nothing is touched.
type Report struct {
	DryRun              bool     `json:"dry_run"`
	FilesProcessed      int      `json:"files_processed"`
	FilesDeleted        int      `json:"files_deleted"`
	Errors              []string `json:"errors"`
	DeletedFiles        []string `json:"deleted_files"`
	TotalSizeFreedBytes int64    `json:"total_size_freed_bytes"`
}

// Enforcer applies the retention policy to one directory. Only files
// ending in .csv directly under the directory are considered; exports
// never nest because sanitized filenames contain no separators.
type Enforcer struct {
	dir           string
	retentionDays int
	log           zerolog.Logger
}

// NewEnforcer creates an enforcer over dir with the given retention
// period in days.
func NewEnforcer(dir string, retentionDays int, log zerolog.Logger) *Enforcer {
	return &Enforcer{
		dir:           dir,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "retention").Logger(),
	}
}

// Threshold is the cutoff for the current moment: files modified
// before it are past retention. Computed per call so a long-lived
// enforcer keeps aging files out.
func (e *Enforcer) Threshold() time.Time {
	return time.Now().AddDate(0, 0, -e.retentionDays)
}

// FindCSVFiles lists the CSV files under the directory, sorted by path.
func (e *Enforcer) FindCSVFiles() ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("FindCSVFiles: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		files = append(files, filepath.Join(e.dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Analyze stats every CSV file and buckets it as old or recent. Files
// deleted between discovery and stat are skipped.
func (e *Enforcer) Analyze() (*Analysis, error) {
	files, err := e.FindCSVFiles()
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	threshold := e.Threshold()
	analysis := &Analysis{
		RetentionThreshold: threshold,
		RetentionDays:      e.retentionDays,
	}

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable CSV file")
			continue
		}

		fi := FileInfo{
			Path:         path,
			Filename:     filepath.Base(path),
			SizeBytes:    info.Size(),
			ModifiedTime: info.ModTime(),
			Old:          info.ModTime().Before(threshold),
		}
		analysis.TotalFiles++
		if fi.Old {
			analysis.OldFiles = append(analysis.OldFiles, fi)
		} else {
			analysis.RecentFiles = append(analysis.RecentFiles, fi)
		}
	}

	return analysis, nil
}

// Cleanup removes every file past retention, or only counts them when
// dryRun is set. Individual delete failures are recorded and do not
// stop the pass.
func (e *Enforcer) Cleanup(ctx context.Context, dryRun bool) (*Report, error) {
	analysis, err := e.Analyze()
	if err != nil {
		return nil, fmt.Errorf("Cleanup: %w", err)
	}

	report := &Report{
		DryRun:         dryRun,
		FilesProcessed: len(analysis.OldFiles),
	}

	for _, file := range analysis.OldFiles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Cleanup: %w", err)
		}

		if !dryRun {
			if err := os.Remove(file.Path); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", file.Path, err))
				e.log.Error().Err(err).Str("path", file.Path).Msg("Failed to delete expired CSV file")
				continue
			}
		}

		report.FilesDeleted++
		report.DeletedFiles = append(report.DeletedFiles, file.Path)
		report.TotalSizeFreedBytes += file.SizeBytes
		e.log.Info().
			Str("path", file.Path).
			Int64("size_bytes", file.SizeBytes).
			Bool("dry_run", dryRun).
			Msg("Expired CSV file removed")
	}

	return report, nil
}

// ProbeDelete verifies files in the directory can be created and
// removed before a destructive run.
func (e *Enforcer) ProbeDelete() error {
	path := filepath.Join(e.dir, "retention_test_file.tmp")
	if err := os.WriteFile(path, []byte("retention probe"), 0o644); err != nil {
		return fmt.Errorf("ProbeDelete: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("ProbeDelete: %w", err)
	}
	return nil
}

// ReportText renders a human-readable view of the current analysis.
func (e *Enforcer) ReportText() (string, error) {
	analysis, err := e.Analyze()
	if err != nil {
		return "", fmt.Errorf("ReportText: %w", err)
	}

	var b strings.Builder
	b.WriteString("CSV File Retention Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Base Directory: %s\n", e.dir)
	fmt.Fprintf(&b, "Retention Period: %d days\n", e.retentionDays)
	fmt.Fprintf(&b, "Retention Threshold: %s\n", analysis.RetentionThreshold.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total CSV files found: %d\n", analysis.TotalFiles)

	fmt.Fprintf(&b, "\nFiles past retention (%d):\n", len(analysis.OldFiles))
	for _, file := range analysis.OldFiles {
		fmt.Fprintf(&b, "- %s (%d bytes, modified %s)\n",
			file.Filename, file.SizeBytes, file.ModifiedTime.Format(time.RFC3339))
	}

	fmt.Fprintf(&b, "\nFiles within retention (%d):\n", len(analysis.RecentFiles))
	for _, file := range analysis.RecentFiles {
		fmt.Fprintf(&b, "- %s (%d bytes, modified %s)\n",
			file.Filename, file.SizeBytes, file.ModifiedTime.Format(time.RFC3339))
	}

	return b.String(), nil
}
