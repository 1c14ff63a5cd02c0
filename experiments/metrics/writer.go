package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type StepRecord struct {
	Run    int // EpisodeMetric.Run
	State  string
	Action string
	Reward float64
	Visits int
	Value  float64
	StepMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates <root>/<name>/<timestamp>-<id> so that concurrent
// experiments never share a directory.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp+"-"+uuid.NewString()[:8])
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

// WriteSetup stores the experiment configuration as indented JSON.
func (w *Writer) WriteSetup(setup any) error {
	data, err := json.MarshalIndent(setup, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode setup: %w", err)
	}
	path := filepath.Join(w.baseDir, "setup.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write setup file: %w", err)
	}
	return nil
}

func (w *Writer) WriteEpisodes(records []EpisodeMetric) error {
	header := []string{"run", "seed", "goal", "manual", "start_time", "end_time", "duration", "steps", "total_reward", "reached"}
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = []string{
			strconv.Itoa(record.Run),
			strconv.FormatUint(record.Seed, 10),
			record.Goal,
			record.Manual,
			record.StartTime.Format(time.RFC3339Nano),
			record.EndTime.Format(time.RFC3339Nano),
			record.Duration.String(),
			strconv.Itoa(record.TotalSteps),
			formatFloat(record.TotalReward),
			strconv.FormatBool(record.Reached),
		}
	}
	return w.writeCSV("episodes.csv", header, rows)
}

func (w *Writer) WriteSteps(records []StepRecord) error {
	header := []string{"run", "step", "state", "action", "reward", "visits", "value",
		"iterations", "simulations", "expansions", "terminal_leaves", "duration", "is_tree_reused"}
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = []string{
			strconv.Itoa(record.Run),
			strconv.Itoa(record.Step),
			record.State,
			record.Action,
			formatFloat(record.Reward),
			strconv.Itoa(record.Visits),
			formatFloat(record.Value),
			strconv.Itoa(record.Iterations),
			strconv.Itoa(record.Simulations),
			strconv.Itoa(record.Expansions),
			strconv.Itoa(record.TerminalLeaves),
			record.Duration.String(),
			strconv.FormatBool(record.IsTreeReused),
		}
	}
	return w.writeCSV("steps.csv", header, rows)
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.baseDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
