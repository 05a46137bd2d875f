package safety

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/logging"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

const dateLayout = "2006-01-02"

// dailyState is the persisted ledger of distinct courses touched today.
//
// The file is read-modify-written without locking, so two processes
// bypassing the run lock could both read the same ledger and each admit a
// course. The run lock makes that configuration unsupported rather than
// this package defending against it.
type dailyState struct {
	Date    string  `json:"date"`
	Courses []int64 `json:"courses"`
}

// Governor enforces the daily distinct-course cap.
type Governor struct {
	statePath string
	courseCap int
	override  bool
	logger    *slog.Logger
	now       func() time.Time
}

// NewGovernor builds a governor over the state file at statePath. With
// override set, checks pass unconditionally but courses are still
// recorded.
func NewGovernor(statePath string, courseCap int, override bool, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Governor{
		statePath: statePath,
		courseCap: courseCap,
		override:  override,
		logger:    logging.WithComponent(logger, "safety"),
		now:       time.Now,
	}
}

// CheckDailyLimit reports whether a run against courseID may start today.
// A course already in today's ledger always passes, so interrupted runs
// can resume without consuming extra budget.
func (g *Governor) CheckDailyLimit(courseID int64) error {
	if g.override {
		g.logger.Warn("daily course limit override active", logging.Int64("course_id", courseID))
		return nil
	}
	state, err := g.load()
	if err != nil {
		return err
	}
	if state.contains(courseID) {
		return nil
	}
	if len(state.Courses) >= g.courseCap {
		return services.Wrap(services.ErrDailyLimit, "safety", "check daily limit",
			fmt.Sprintf("%d of %d courses already downloaded today (%v); retry tomorrow or resume one of those", len(state.Courses), g.courseCap, state.Courses), nil)
	}
	return nil
}

// RecordCourse adds courseID to today's ledger. Idempotent; recording a
// course twice consumes no extra budget.
func (g *Governor) RecordCourse(courseID int64) error {
	state, err := g.load()
	if err != nil {
		return err
	}
	if state.contains(courseID) {
		return nil
	}
	state.Courses = append(state.Courses, courseID)
	sort.Slice(state.Courses, func(i, j int) bool { return state.Courses[i] < state.Courses[j] })
	return g.save(state)
}

// RecordedToday returns today's ledger for status display.
func (g *Governor) RecordedToday() ([]int64, error) {
	state, err := g.load()
	if err != nil {
		return nil, err
	}
	return state.Courses, nil
}

func (s *dailyState) contains(courseID int64) bool {
	for _, id := range s.Courses {
		if id == courseID {
			return true
		}
	}
	return false
}

func (g *Governor) today() string {
	return g.now().Format(dateLayout)
}

func (g *Governor) load() (*dailyState, error) {
	fresh := &dailyState{Date: g.today()}
	data, err := os.ReadFile(g.statePath)
	if os.IsNotExist(err) {
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read download state %s: %w", g.statePath, err)
	}
	var state dailyState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt ledger fails open with a warning instead of blocking
		// every future run.
		g.logger.Warn("download state unreadable, starting a fresh ledger",
			logging.String("path", g.statePath), logging.Error(err))
		return fresh, nil
	}
	if state.Date != fresh.Date {
		return fresh, nil
	}
	return &state, nil
}

func (g *Governor) save(state *dailyState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode download state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(g.statePath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	temp := g.statePath + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return fmt.Errorf("write download state: %w", err)
	}
	if err := os.Rename(temp, g.statePath); err != nil {
		return fmt.Errorf("replace download state: %w", err)
	}
	return nil
}
