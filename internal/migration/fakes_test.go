package migration

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/legacy"
	"github.com/tphakala/flagmigrate/internal/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// fakeLegacy is an in-memory legacy keyspace.
type fakeLegacy struct {
	mu sync.Mutex

	pids    []string
	bundles map[string]legacy.FlagBundle
	sets    map[string][]legacy.ScoredMember

	bundleErr error
	rangeErr  map[string]error
	pageErr   error

	pageCalls  []string
	rangeCalls map[string]int
}

func newFakeLegacy() *fakeLegacy {
	return &fakeLegacy{
		bundles:    make(map[string]legacy.FlagBundle),
		sets:       make(map[string][]legacy.ScoredMember),
		rangeErr:   make(map[string]error),
		rangeCalls: make(map[string]int),
	}
}

// addPost registers a post without any flag data.
func (f *fakeLegacy) addPost(pid string) {
	f.pids = append(f.pids, pid)
	f.bundles[pid] = legacy.FlagBundle{PID: pid}
}

// addFlagged registers a post with the marker and the given bundle fields.
func (f *fakeLegacy) addFlagged(pid string, bundle legacy.FlagBundle) {
	bundle.PID = pid
	bundle.HasMarker = true
	f.pids = append(f.pids, pid)
	f.bundles[pid] = bundle
}

// addVote appends a vote and its reason member, in rank order.
func (f *fakeLegacy) addVote(pid, uid string, score float64, reason string) {
	f.sets[legacy.FlagVotesKey(pid)] = append(f.sets[legacy.FlagVotesKey(pid)], legacy.ScoredMember{Member: uid, Score: score})
	f.sets[legacy.FlagReasonsKey(pid)] = append(f.sets[legacy.FlagReasonsKey(pid)], legacy.ScoredMember{Member: uid + ":" + reason, Score: score})
}

func (f *fakeLegacy) NextPage(_ context.Context, afterKey string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pageCalls = append(f.pageCalls, afterKey)
	if f.pageErr != nil {
		return nil, f.pageErr
	}

	start := 0
	if afterKey != "" {
		i := slices.Index(f.pids, afterKey)
		if i < 0 {
			return nil, legacy.ErrCursorNotFound
		}
		start = i + 1
	}
	end := min(start+limit, len(f.pids))
	return slices.Clone(f.pids[start:end]), nil
}

func (f *fakeLegacy) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.pids)), nil
}

func (f *fakeLegacy) GetBundles(_ context.Context, pids []string) ([]legacy.FlagBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bundleErr != nil {
		return nil, f.bundleErr
	}
	out := make([]legacy.FlagBundle, len(pids))
	for i, pid := range pids {
		b, ok := f.bundles[pid]
		if !ok {
			b = legacy.FlagBundle{PID: pid}
		}
		out[i] = b
	}
	return out, nil
}

func (f *fakeLegacy) SortedSetRangeWithScores(_ context.Context, key string, _, _ int64) ([]legacy.ScoredMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rangeCalls[key]++
	if err := f.rangeErr[key]; err != nil {
		return nil, err
	}
	return slices.Clone(f.sets[key]), nil
}

func (f *fakeLegacy) SortedSetRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rangeCalls[key]++
	if err := f.rangeErr[key]; err != nil {
		return nil, err
	}
	members := make([]string, 0, len(f.sets[key]))
	for _, m := range f.sets[key] {
		members = append(members, m.Member)
	}
	return members, nil
}

func (f *fakeLegacy) rangeCallsFor(pid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rangeCalls[legacy.FlagVotesKey(pid)] + f.rangeCalls[legacy.FlagReasonsKey(pid)]
}

type createCall struct {
	TargetType string
	TargetID   string
	Reporter   string
	Reason     string
	Datetime   int64
}

type updateCall struct {
	FlagID int64
	Actor  string
	Patch  flags.Patch
}

type noteCall struct {
	FlagID   int64
	Actor    string
	Content  string
	Datetime int64
}

// fakeFlags is an in-memory flags.Service that records calls.
type fakeFlags struct {
	mu sync.Mutex

	nextID   int64
	byTarget map[string]int64

	createErr map[string]error
	updateErr error
	noteErr   error

	creates []createCall
	updates []updateCall
	notes   []noteCall
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{
		byTarget:  make(map[string]int64),
		createErr: make(map[string]error),
	}
}

func (f *fakeFlags) Create(_ context.Context, targetType, targetID, reporter, reason string, datetime int64) (*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates = append(f.creates, createCall{targetType, targetID, reporter, reason, datetime})
	if err := f.createErr[targetID]; err != nil {
		return nil, err
	}
	key := targetType + ":" + targetID
	if _, ok := f.byTarget[key]; ok {
		return nil, fmt.Errorf("%w: %s", flags.ErrAlreadyFlagged, key)
	}
	f.nextID++
	f.byTarget[key] = f.nextID
	return &flags.Flag{ID: f.nextID, Type: targetType, TargetID: targetID, Reporter: reporter, Reason: reason, Datetime: datetime}, nil
}

func (f *fakeFlags) Update(_ context.Context, flagID int64, actor string, patch flags.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, updateCall{flagID, actor, patch})
	return f.updateErr
}

func (f *fakeFlags) AppendNote(_ context.Context, flagID int64, actor, content string, datetime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notes = append(f.notes, noteCall{flagID, actor, content, datetime})
	return f.noteErr
}

// successfulCreates returns the number of distinct flags created.
func (f *fakeFlags) successfulCreates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byTarget)
}

// fakeMetrics counts outcomes.
type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	pages    int
	total    int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: make(map[Outcome]int)}
}

func (m *fakeMetrics) RecordOutcome(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
}

func (m *fakeMetrics) ObservePage(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages++
}

func (m *fakeMetrics) SetTotal(total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

func (m *fakeMetrics) count(o Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[o]
}

// newTestTransformer wires a Transformer over fakes.
func newTestTransformer(t *testing.T, src *fakeLegacy, svc flags.Service, progress Progress, metrics Metrics) *Transformer {
	t.Helper()
	return NewTransformer(&TransformerConfig{
		Posts:    src,
		Sets:     src,
		Flags:    svc,
		Progress: progress,
		Metrics:  metrics,
		Logger:   newTestLogger(),
	})
}
