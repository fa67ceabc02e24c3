package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/llm"
	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/model"
	"github.com/rcliao/tai/internal/patch"
	"github.com/rcliao/tai/internal/prompt"
	"github.com/rcliao/tai/internal/router"
	"github.com/rcliao/tai/internal/scrape"
)

// NoResponse is recorded as Tai's side of a turn whose reply was empty.
const NoResponse = "No Response"

// Models are the model roles a turn consults.
type Models struct {
	Dictator  llm.Model
	Architect llm.Model
	Historian llm.Model
}

// Config wires a Pipeline.
type Config struct {
	Composer     *prompt.Composer
	Models       Models
	Memory       *memory.Manager
	Applier      patch.Applier
	Region       string
	Scraper      *scrape.Scraper // nil disables link scraping
	ChangelogURL string
	Budget       int // characters of each tier sent to the model; 0 = all
	Logger       *zap.Logger
}

// Pipeline runs turns.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// NewPipeline validates cfg and returns a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Models.Dictator == nil || cfg.Models.Historian == nil {
		return nil, errors.New("chat: dictator and historian models are required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("chat: memory manager is required")
	}
	if cfg.Composer == nil {
		cfg.Composer = prompt.New("")
	}
	if cfg.Region == "" {
		cfg.Region = patch.DefaultRegion
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}, nil
}

// Turn is the outcome of one exchange.
type Turn struct {
	ID            string
	At            time.Time
	Message       string
	Response      router.Response
	Scraped       string
	CodeApplied   bool
	MemoryUpdated bool
}

// Turn answers message against state and returns the next state. The
// returned state already includes the new restricted entry; persisting it is
// the caller's job.
func (p *Pipeline) Turn(ctx context.Context, state State, message string) (State, Turn, error) {
	next := state.Clone()
	now := p.cfg.Memory.Now()
	turn := Turn{ID: uuid.NewString(), At: now, Message: message}
	log := p.log.With(zap.String("turn", turn.ID))

	if !next.Day.IsZero() && !sameDay(next.Day, now) {
		restricted, err := p.cfg.Memory.Load(ctx, model.TierRestricted, now)
		if err != nil {
			return state, turn, fmt.Errorf("roll over restricted memory: %w", err)
		}
		log.Info("restricted memory rolled over", zap.String("day", now.Format(model.DayLayout)))
		next.Restricted = restricted
		next.Day = now
	}

	memCtx := p.memoryContext(next)

	var changelog string
	if p.cfg.Scraper != nil && p.cfg.ChangelogURL != "" {
		changelog = p.cfg.Scraper.Page(ctx, p.cfg.ChangelogURL)
	}

	initial, err := p.cfg.Models.Dictator.Generate(ctx, p.cfg.Composer.Initial(prompt.InitialInput{
		Memory:    memCtx,
		Changelog: changelog,
		Message:   message,
		Now:       now,
	}))
	if err != nil {
		return state, turn, fmt.Errorf("initial reply: %w", err)
	}
	candidate := router.SplitEvolution(initial)
	log.Debug("candidate reply", zap.Bool("evolve", candidate.Evolve), zap.Int("chars", len(initial)))

	if p.cfg.Scraper != nil {
		turn.Scraped = p.cfg.Scraper.Scrape(ctx, message)
	}

	var code string
	if candidate.Evolve {
		code = p.evolve(ctx, log, message, memCtx, now)
		turn.CodeApplied = code != ""
	}

	followUp, err := p.cfg.Models.Dictator.Generate(ctx, p.cfg.Composer.FollowUp(prompt.FollowUpInput{
		Message:     message,
		Recommended: candidate.Text,
		Memory:      memCtx,
		Code:        code,
		Scraped:     turn.Scraped,
	}))
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		return state, turn, fmt.Errorf("follow-up reply: %w", err)
	}
	turn.Response = router.Classify(candidate, code, followUp)

	if turn.Response.UpdatesMemory() {
		entries, ok, err := p.cfg.Memory.UpdateGlobal(ctx, p.cfg.Models.Historian, message)
		switch {
		case err != nil:
			log.Warn("global memory update failed", zap.Error(err))
		case ok:
			next.Global = entries
			next.GlobalRewritten = true
			turn.MemoryUpdated = true
		default:
			log.Info("global memory update discarded")
		}
	}

	tai := followUp
	if tai == "" {
		tai = NoResponse
	}
	next.Restricted = append(next.Restricted, model.Entry{
		Timestamp: now.Format(model.TimestampLayout),
		User:      message,
		Tai:       tai,
	})
	return next, turn, nil
}

func (p *Pipeline) memoryContext(s State) string {
	b := p.cfg.Budget
	return prompt.MemoryContext(
		memory.Format(memory.Recent(s.Global, model.TierGlobal, b), model.TierGlobal),
		memory.Format(memory.Recent(s.Restricted, model.TierRestricted, b), model.TierRestricted),
	)
}

// evolve asks the architect for new region code, has it review its own
// proposal, and applies the result. It returns the applied code, or "" if
// nothing was applied.
func (p *Pipeline) evolve(ctx context.Context, log *zap.Logger, message, memCtx string, now time.Time) string {
	if p.cfg.Applier == nil || p.cfg.Models.Architect == nil {
		log.Warn("evolution requested but no region is configured")
		return ""
	}
	current, err := p.cfg.Applier.GetCode(ctx, p.cfg.Region)
	if err != nil {
		log.Warn("read region", zap.Error(err))
		return ""
	}

	draft, err := p.cfg.Models.Architect.Generate(ctx, p.cfg.Composer.Code(prompt.CodeInput{
		Request: message,
		Current: current,
		Memory:  memCtx,
		Now:     now,
	}))
	if err != nil {
		log.Warn("architect draft", zap.Error(err))
		return ""
	}
	proposed := llm.CleanCode(draft)
	if proposed == "" {
		return ""
	}

	reviewed, err := p.cfg.Models.Architect.Generate(ctx, p.cfg.Composer.CodeReview(message, current, proposed, now))
	if err != nil {
		log.Warn("architect review", zap.Error(err))
		return ""
	}
	final := llm.CleanCode(reviewed)
	if final == "" || final == current {
		return ""
	}

	if err := p.cfg.Applier.Modify(ctx, p.cfg.Region, final); err != nil {
		log.Warn("region not modified", zap.Error(err))
		return ""
	}
	log.Info("region evolved", zap.String("region", p.cfg.Region))
	return final
}
