package workflow

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/review"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/testutil"
	"github.com/revcraft/revcraft/internal/usage"
)

type scriptedReply struct {
	text  string
	usage model.Usage
	err   error
}

type fakeClient struct {
	replies   []scriptedReply
	systems   []string
	opts      []model.Options
	histories [][]session.Message
}

func (f *fakeClient) Invoke(_ context.Context, messages []session.Message, system string, opts model.Options) (*model.Response, error) {
	f.systems = append(f.systems, system)
	f.opts = append(f.opts, opts)
	f.histories = append(f.histories, append([]session.Message(nil), messages...))
	i := len(f.systems) - 1
	if i >= len(f.replies) {
		return &model.Response{Text: "Anything else?", Usage: model.Usage{InputTokens: 10, OutputTokens: 5}}, nil
	}
	r := f.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return &model.Response{Text: r.text, Usage: r.usage}, nil
}

type scriptedOperator struct {
	answers []string
	choices []Choice
	onAsk   func()

	asked []string
	menus []string
	shown []string
	infos []string
	warns []string
}

func (o *scriptedOperator) Ask(_ context.Context, prompt string) (string, error) {
	o.asked = append(o.asked, prompt)
	if o.onAsk != nil {
		o.onAsk()
	}
	if len(o.answers) == 0 {
		return "", io.EOF
	}
	a := o.answers[0]
	o.answers = o.answers[1:]
	return a, nil
}

func (o *scriptedOperator) Choose(_ context.Context, prompt string, _ []Option) (Choice, error) {
	o.menus = append(o.menus, prompt)
	if len(o.choices) == 0 {
		return "", io.EOF
	}
	c := o.choices[0]
	o.choices = o.choices[1:]
	return c, nil
}

func (o *scriptedOperator) ShowAssistant(_ session.Phase, text string) { o.shown = append(o.shown, text) }
func (o *scriptedOperator) Info(msg string)                           { o.infos = append(o.infos, msg) }
func (o *scriptedOperator) Warn(msg string)                           { o.warns = append(o.warns, msg) }
func (o *scriptedOperator) Busy(string) func()                        { return func() {} }

type countingStore struct {
	inner *session.Store
	saves int
}

func (c *countingStore) Save(s *session.Session) (string, error) {
	c.saves++
	return c.inner.Save(s)
}

type usageLog struct {
	entries []usage.Entry
}

func (u *usageLog) Record(e usage.Entry) error {
	u.entries = append(u.entries, e)
	return nil
}

type harness struct {
	machine *Machine
	store   *countingStore
	dir     string
}

func newHarness(t *testing.T, dir string, client model.Client, op Operator, configure func(*Options)) *harness {
	t.Helper()
	fw, err := framework.Default()
	if err != nil {
		t.Fatalf("framework.Default() error: %v", err)
	}
	clock := func() time.Time { return testutil.FixedTime }
	store := &countingStore{inner: session.NewStore(filepath.Join(dir, "sessions"), session.WithClock(clock))}
	opts := Options{
		Client:    client,
		Store:     store,
		Operator:  op,
		Framework: fw,
		Reviews:   review.NewWriter(filepath.Join(dir, "reviews"), clock),
		Clock:     clock,
		ImagesDir: filepath.Join(dir, "images"),
	}
	if configure != nil {
		configure(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &harness{machine: m, store: store, dir: dir}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	if err == nil || !strings.Contains(err.Error(), "model client is required") {
		t.Errorf("New(empty) error = %v, want model client is required", err)
	}
}

func TestRunFullReview(t *testing.T) {
	dir := testutil.TempProject(t, map[string]string{"images/front.png": "png-bytes"})
	client := &fakeClient{replies: []scriptedReply{
		{text: "Thanks! I'm ready to move to the draft creation phase.\n[[PHASE_COMPLETE:intake]]"},
		{text: "# Aero Kettle 2000: fast and quiet\n\nRating: 4/5\n\nIt boils fast.\n\n[[PHASE_COMPLETE:draft]]"},
		{text: "# Aero Kettle 2000: fast, quiet, well made\n\nIt boils a litre in three minutes.\n\n[[PHASE_COMPLETE:refine]]"},
		{text: "Helpfulness: 8/10\nHonesty: 9/10\n\n# Aero Kettle 2000: fast, quiet, well made\n\nIt boils a litre in three minutes.\n\n[[PHASE_COMPLETE:quality]]"},
	}}
	op := &scriptedOperator{
		answers: []string{"I bought the Aero Kettle 2000 last month. The kettle boils water fast."},
		choices: []Choice{ChoiceProceed, ChoiceProceed, ChoiceProceed, ChoiceFinish},
	}
	h := newHarness(t, dir, client, op, nil)

	s := session.New(testutil.FixedTime)
	if err := h.machine.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if s.ProductName != "Aero Kettle 2000" {
		t.Errorf("ProductName = %q, want %q", s.ProductName, "Aero Kettle 2000")
	}
	if s.Category != "kitchen" {
		t.Errorf("Category = %q, want kitchen", s.Category)
	}
	for _, p := range session.Phases {
		if !s.PhaseData.IsComplete(p) {
			t.Errorf("phase %s not complete", p)
		}
	}
	if len(client.systems) != 4 {
		t.Fatalf("model calls = %d, want 4", len(client.systems))
	}
	if !strings.Contains(client.systems[1], "DRAFT phase") {
		t.Error("second call did not use the draft prompt")
	}
	if !strings.Contains(client.systems[2], "It boils fast.") {
		t.Error("refine prompt does not carry the draft")
	}

	first := s.Messages[0]
	if len(first.Parts) != 2 || first.ImageCount() != 1 {
		t.Fatalf("first message parts = %d (images %d), want text plus one image", len(first.Parts), first.ImageCount())
	}
	if !strings.HasPrefix(first.Text(), "Here is my initial product review:") || !strings.Contains(first.Text(), imagesText) {
		t.Errorf("first message text = %q", first.Text())
	}
	for _, msg := range s.Messages[1:] {
		if msg.ImageCount() != 0 {
			t.Error("image attached to a later message")
		}
	}

	wantPath := filepath.Join(dir, "reviews", review.FileName("Aero Kettle 2000", testutil.FixedTime))
	if s.PhaseData.Quality.Data.ReviewPath != wantPath {
		t.Errorf("ReviewPath = %q, want %q", s.PhaseData.Quality.Data.ReviewPath, wantPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("reading review: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Aero Kettle 2000: fast, quiet, well made") {
		t.Errorf("review = %q, want the final review", data)
	}
	if strings.Contains(string(data), "PHASE_COMPLETE") || strings.Contains(string(data), "/10") {
		t.Errorf("review carries audit text: %q", data)
	}
	if got := s.PhaseData.Quality.Data.Scores["honesty"]; got != 9 {
		t.Errorf("Scores[honesty] = %v, want 9", got)
	}
	for _, text := range op.shown {
		if strings.Contains(text, "PHASE_COMPLETE") {
			t.Errorf("marker shown to operator: %q", text)
		}
	}
}

func TestRunEntryGuardMovesBack(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{{text: "What colour is it?"}}}
	op := &scriptedOperator{}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.InconsistentSession()
	err := h.machine.Run(context.Background(), s)
	if !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if s.Phase != session.PhaseIntake {
		t.Errorf("Phase = %q, want intake", s.Phase)
	}
	if len(client.systems) != 1 || !strings.Contains(client.systems[0], "INTAKE phase") {
		t.Errorf("model calls = %d, want one intake call", len(client.systems))
	}
}

func TestExitPersistsOnceAndResumes(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{replies: []scriptedReply{{text: "# Draft\n\nText"}}}
	op := &scriptedOperator{answers: []string{"exit"}}
	h := newHarness(t, dir, client, op, nil)
	savesAtAsk := -1
	op.onAsk = func() { savesAtAsk = h.store.saves }

	s := testutil.DraftSession()
	err := h.machine.Run(context.Background(), s)
	if !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if h.store.saves != savesAtAsk+1 {
		t.Errorf("saves = %d, want %d (one more after exit)", h.store.saves, savesAtAsk+1)
	}

	loaded, err := h.store.inner.Load(s.ID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Phase != s.Phase {
		t.Errorf("loaded Phase = %q, want %q", loaded.Phase, s.Phase)
	}
	if len(loaded.Messages) != len(s.Messages) {
		t.Errorf("loaded %d messages, want %d", len(loaded.Messages), len(s.Messages))
	}
	if loaded.PhaseData.Draft.Data.Draft != "# Draft\n\nText" {
		t.Errorf("Draft = %q, want %q", loaded.PhaseData.Draft.Data.Draft, "# Draft\n\nText")
	}

	client2 := &fakeClient{}
	op2 := &scriptedOperator{answers: []string{"Make it shorter."}}
	h2 := newHarness(t, dir, client2, op2, nil)
	if err := h2.machine.Run(context.Background(), loaded); !errors.Is(err, ErrExit) {
		t.Fatalf("resumed Run() error = %v, want ErrExit", err)
	}
	if len(op2.asked) == 0 || op2.asked[0] != "Your response" {
		t.Errorf("resume asked %v, want the operator prompt before any model call", op2.asked)
	}
	if len(client2.histories) == 0 || len(client2.histories[0]) != len(s.Messages)+1 {
		t.Errorf("resumed call history = %d messages, want %d", len(client2.histories[0]), len(s.Messages)+1)
	}
}

func TestSaveCommandPersistsAndAsksAgain(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{{text: "Tell me more."}}}
	op := &scriptedOperator{answers: []string{"save", "exit"}}
	h := newHarness(t, t.TempDir(), client, op, nil)

	err := h.machine.Run(context.Background(), testutil.DraftSession())
	if !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if len(op.asked) != 2 {
		t.Errorf("asked %d times, want 2", len(op.asked))
	}
	// reply, save, exit
	if h.store.saves != 3 {
		t.Errorf("saves = %d, want 3", h.store.saves)
	}
}

func TestChangesRequestLoopsBack(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{
		{text: "# Draft\n\nv1\n[[PHASE_COMPLETE:draft]]"},
		{text: "# Draft\n\nv2\n[[PHASE_COMPLETE:draft]]"},
	}}
	op := &scriptedOperator{
		answers: []string{"Mention the lid."},
		choices: []Choice{ChoiceChanges, ChoiceProceed},
	}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.DraftSession()
	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if len(client.histories) < 2 {
		t.Fatalf("model calls = %d, want at least 2", len(client.histories))
	}
	second := client.histories[1]
	if got := second[len(second)-1].Text(); got != "Mention the lid." {
		t.Errorf("feedback turn = %q, want %q", got, "Mention the lid.")
	}
	if !s.PhaseData.Draft.Complete {
		t.Error("draft not marked complete after proceed")
	}
	if s.PhaseData.Draft.Data.Draft != "# Draft\n\nv2" {
		t.Errorf("Draft = %q, want v2", s.PhaseData.Draft.Data.Draft)
	}
	if s.Phase != session.PhaseRefine {
		t.Errorf("Phase = %q, want refine", s.Phase)
	}
}

func TestAbandonPersists(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{{text: "# Draft\n\nDone.\n[[PHASE_COMPLETE:draft]]"}}}
	op := &scriptedOperator{choices: []Choice{ChoiceAbandon}}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.DraftSession()
	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrAbandoned) {
		t.Fatalf("Run() error = %v, want ErrAbandoned", err)
	}
	loaded, err := h.store.inner.Load(s.ID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.PhaseData.Draft.Complete {
		t.Error("abandoned phase marked complete")
	}
	if len(loaded.Messages) != len(s.Messages) {
		t.Errorf("loaded %d messages, want %d", len(loaded.Messages), len(s.Messages))
	}
}

func TestModelErrorRetriesWithoutDuplicatingTurn(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{
		{err: &model.APIError{Kind: model.ErrRateLimited, Status: 429}},
		{text: "Which features matter most to you?"},
	}}
	op := &scriptedOperator{answers: []string{""}}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.DraftSession()
	before := len(s.Messages)
	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if len(op.warns) != 1 || !strings.HasPrefix(op.warns[0], "Draft phase:") {
		t.Errorf("warnings = %v, want one naming the draft phase", op.warns)
	}
	if len(client.systems) != 2 {
		t.Errorf("model calls = %d, want 2", len(client.systems))
	}
	if len(s.Messages) != before+1 {
		t.Errorf("messages = %d, want %d", len(s.Messages), before+1)
	}
}

func TestIntakeResearch(t *testing.T) {
	client := &fakeClient{replies: []scriptedReply{
		// 1 USD per million each way: 200k in + 300k out spends the whole 0.50.
		{text: "Noise\nLid", usage: model.Usage{InputTokens: 200_000, OutputTokens: 300_000}},
		{text: "1. Does it whistle?\n2. How loud is it?", usage: model.Usage{InputTokens: 20, OutputTokens: 20}},
		{text: "Thanks.\n[[PHASE_COMPLETE:intake]]", usage: model.Usage{InputTokens: 30, OutputTokens: 30}},
	}}
	op := &scriptedOperator{answers: []string{"I bought the Aero Kettle 2000.", "Yes, loudly.", ""}}
	journal := &usageLog{}
	h := newHarness(t, t.TempDir(), client, op, func(o *Options) {
		o.InputPrice, o.OutputPrice = 1, 1
		o.Usage = journal
		o.Research = ResearchSettings{
			Enabled:    true,
			BudgetUSD:  0.50,
			Strategy:   research.StrategyWeighted,
			Importance: research.ImportanceMedium,
		}
	})

	s := session.New(testutil.FixedTime)
	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}

	intake := s.PhaseData.Intake.Data
	if intake.Research[research.OpGapAnalysis] != "Noise\nLid" {
		t.Errorf("Research[gap_analysis] = %q", intake.Research[research.OpGapAnalysis])
	}
	if !intake.ResearchDone || intake.ResearchSkipped != "budget exhausted" {
		t.Errorf("ResearchDone = %v, ResearchSkipped = %q", intake.ResearchDone, intake.ResearchSkipped)
	}
	if s.Budget == nil || !s.Budget.Exhausted {
		t.Errorf("Budget = %+v, want an exhausted snapshot", s.Budget)
	}
	if len(intake.GapQuestions) != 2 {
		t.Errorf("GapQuestions = %v, want 2", intake.GapQuestions)
	}

	if len(s.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(s.Messages))
	}
	if s.Messages[1].Text() != "Does it whistle?" || s.Messages[2].Text() != "Yes, loudly." {
		t.Errorf("follow-up turns = %q / %q", s.Messages[1].Text(), s.Messages[2].Text())
	}

	if len(client.opts) != 3 || !client.opts[0].WebSearch || client.opts[1].WebSearch || client.opts[2].WebSearch {
		t.Errorf("web search flags = %+v", client.opts)
	}
	if !strings.Contains(client.systems[2], "## Research Insights") || !strings.Contains(client.systems[2], "Noise") {
		t.Error("intake prompt does not carry research insights")
	}
	if s.Usage.Calls != 3 {
		t.Errorf("Usage.Calls = %d, want 3", s.Usage.Calls)
	}
	if len(journal.entries) != 3 || journal.entries[0].Operation != research.OpGapAnalysis || !journal.entries[0].WebSearch {
		t.Fatalf("journal = %+v", journal.entries)
	}
	if got := journal.entries[0].CostUSD; got != 0.5 {
		t.Errorf("journaled cost = %v, want 0.5", got)
	}
}

func TestRunFinishedSessionDoesNothing(t *testing.T) {
	client := &fakeClient{}
	op := &scriptedOperator{}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.DraftSession()
	s.Phase = session.PhaseQuality
	for _, p := range session.Phases {
		s.PhaseData.SetComplete(p, true)
	}
	if err := h.machine.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(client.systems) != 0 || h.store.saves != 0 {
		t.Errorf("finished session made %d calls and %d saves", len(client.systems), h.store.saves)
	}
}

func TestRunReopensFinishedSessionWithIncompletePhases(t *testing.T) {
	client := &fakeClient{}
	op := &scriptedOperator{}
	h := newHarness(t, t.TempDir(), client, op, nil)

	s := testutil.InconsistentSession()
	s.Phase = session.PhaseQuality
	s.PhaseData.SetComplete(session.PhaseDraft, true)
	s.PhaseData.SetComplete(session.PhaseRefine, true)
	s.PhaseData.SetComplete(session.PhaseQuality, true)

	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if s.Phase != session.PhaseIntake {
		t.Errorf("Phase = %q, want intake", s.Phase)
	}
	if s.PhaseData.Quality.Complete {
		t.Error("quality still marked complete")
	}
	if len(client.systems) == 0 || !strings.Contains(client.systems[0], "INTAKE phase") {
		t.Errorf("model calls = %d, want the first under the intake prompt", len(client.systems))
	}
}

func TestRunEntryGuardAfterLoad(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{}
	op := &scriptedOperator{}
	h := newHarness(t, dir, client, op, nil)

	written := testutil.InconsistentSession()
	testutil.WriteSession(t, filepath.Join(dir, "sessions"), written)

	s, err := h.store.inner.Load(written.ID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Phase != session.PhaseDraft {
		t.Fatalf("loaded Phase = %q, want draft", s.Phase)
	}
	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}

	reloaded, err := h.store.inner.Load(written.ID)
	if err != nil {
		t.Fatalf("Load() after Run error: %v", err)
	}
	if reloaded.Phase != session.PhaseIntake {
		t.Errorf("persisted Phase = %q, want intake", reloaded.Phase)
	}
	if len(client.systems) == 0 || !strings.Contains(client.systems[0], "INTAKE phase") {
		t.Errorf("model calls = %d, want the first under the intake prompt", len(client.systems))
	}
}

// qualitySession returns a session entering quality control with a refined
// review on record.
func qualitySession() *session.Session {
	s := testutil.DraftSession()
	s.PhaseData.SetComplete(session.PhaseDraft, true)
	s.PhaseData.SetComplete(session.PhaseRefine, true)
	s.PhaseData.Draft.Data.Draft = "# Draft Title\n\nDraft body"
	s.PhaseData.Refine.Data.Refined = "# Refined Title\n\nBody"
	s.Phase = session.PhaseQuality
	s.Append(session.UserText("Let's move on to the Quality phase."))
	return s
}

func TestQualityFallsBackToRefinedText(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{replies: []scriptedReply{
		{text: "Helpfulness: 7/10\nLooks good overall.\n[[PHASE_COMPLETE:quality]]"},
	}}
	op := &scriptedOperator{choices: []Choice{ChoiceFinish}}
	h := newHarness(t, dir, client, op, nil)

	s := qualitySession()
	if err := h.machine.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if s.PhaseData.Quality.Data.FinalReview != "" {
		t.Errorf("FinalReview = %q, want empty for an untitled reply", s.PhaseData.Quality.Data.FinalReview)
	}
	data, err := os.ReadFile(s.PhaseData.Quality.Data.ReviewPath)
	if err != nil {
		t.Fatalf("reading review: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Refined Title\n\nBody") {
		t.Errorf("review = %q, want the refined text", data)
	}
	if !s.PhaseData.Quality.Complete {
		t.Error("quality not complete after finish")
	}
}

func TestQualityAdjustLoopsBack(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{replies: []scriptedReply{
		{text: "Helpfulness: 6/10\n\n# Refined Title\n\nBody\n[[PHASE_COMPLETE:quality]]"},
		{text: "Helpfulness: 8/10\n\n# Final Title\n\nShorter body\n[[PHASE_COMPLETE:quality]]"},
	}}
	op := &scriptedOperator{
		answers: []string{"Cut the second paragraph."},
		choices: []Choice{ChoiceAdjust, ChoiceFinish},
	}
	h := newHarness(t, dir, client, op, nil)

	s := qualitySession()
	if err := h.machine.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(client.histories) != 2 {
		t.Fatalf("model calls = %d, want 2", len(client.histories))
	}
	second := client.histories[1]
	if got := second[len(second)-1].Text(); got != "Cut the second paragraph." {
		t.Errorf("adjust turn = %q, want %q", got, "Cut the second paragraph.")
	}
	if len(op.asked) != 1 || op.asked[0] != "What would you like to adjust?" {
		t.Errorf("asked %v, want the adjust prompt once", op.asked)
	}
	data, err := os.ReadFile(s.PhaseData.Quality.Data.ReviewPath)
	if err != nil {
		t.Fatalf("reading review: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Final Title\n\nShorter body") {
		t.Errorf("review = %q, want the adjusted review", data)
	}
	if got := s.PhaseData.Quality.Data.Scores["helpfulness"]; got != 8 {
		t.Errorf("Scores[helpfulness] = %v, want 8", got)
	}
	if !s.PhaseData.Quality.Complete {
		t.Error("quality not complete after finish")
	}
}

func TestResearchSkippedOnResumedIntake(t *testing.T) {
	client := &fakeClient{}
	op := &scriptedOperator{}
	h := newHarness(t, t.TempDir(), client, op, func(o *Options) {
		o.Research = ResearchSettings{Enabled: true, BudgetUSD: 1, Strategy: research.StrategyWeighted}
	})

	s := testutil.IntakeSession()
	s.Append(session.AssistantText("Which features do you use most?"))
	before := len(s.Messages)

	if err := h.machine.Run(context.Background(), s); !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if len(client.systems) != 0 {
		t.Errorf("model calls = %d, want none before the operator answers", len(client.systems))
	}
	if len(s.Messages) != before {
		t.Errorf("messages = %d, want %d", len(s.Messages), before)
	}
	if s.PhaseData.Intake.Data.ResearchDone {
		t.Error("research marked done on a resumed intake")
	}
}
