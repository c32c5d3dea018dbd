package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/genai"
)

// DefaultTimeout bounds a whole fetch before it falls back.
const DefaultTimeout = 8 * time.Second

// generator is the interface satisfied by Client.
type generator interface {
	Generate(ctx context.Context, prompt string, s *genai.Schema) (*Generation, error)
}

// Fetcher retrieves the insight bundle for one location.
type Fetcher struct {
	gen      generator
	location string
	year     int
	timeout  time.Duration
	log      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for degraded fetches.
func WithLogger(log *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher constructs a Fetcher asking about location for a trip in year.
func NewFetcher(c *Client, location string, year int, opts ...FetcherOption) *Fetcher {
	return newFetcher(c, location, year, opts...)
}

func newFetcher(g generator, location string, year int, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		gen:      g,
		location: location,
		year:     year,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one provider request and never fails: any error yields the
// fallback bundle, and any invalid group is replaced by its fallback value.
func (f *Fetcher) Fetch(ctx context.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("insight fetch panicked: %v", r)
			f.log.Error("insight fetch panicked", "recover", r)
			out = FallbackOutcome(err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	gen, err := f.gen.Generate(ctx, buildPrompt(f.location, f.year), responseSchema())
	if err != nil {
		f.log.Warn("insight fetch failed, using fallback", "location", f.location, "err", err)
		return FallbackOutcome(fmt.Errorf("fetching insights for %s: %w", f.location, err))
	}

	p, err := parsePayload(gen.Text)
	if err != nil {
		f.log.Warn("insight payload unusable, using fallback", "location", f.location, "err", err)
		return FallbackOutcome(err)
	}

	if p.weather == nil && p.climate == nil && p.tips == nil {
		err := fmt.Errorf("no valid insight groups: %w", errors.Join(problemErrors(p.problems)...))
		f.log.Warn("insight payload failed validation, using fallback", "location", f.location, "err", err)
		return FallbackOutcome(err)
	}

	out = assemble(p, NormalizeGrounding(gen.Chunks))
	if out.Degraded() {
		f.log.Warn("insight payload incomplete, substituted fallback groups",
			"location", f.location, "missing", out.Missing, "problems", describe(p.problems))
	}
	return out
}

// assemble merges the validated groups with fallback values for the rest.
func assemble(p *parsed, sources []GroundingSource) Outcome {
	b := Bundle{GroundingSources: sources}
	var missing []Group

	if p.weather != nil {
		b.Weather = *p.weather
	} else {
		b.Weather = fallbackWeather()
		missing = append(missing, GroupWeather)
	}

	if p.climate != nil {
		b.JanuaryClimate = *p.climate
	} else {
		b.JanuaryClimate = fallbackClimate()
		missing = append(missing, GroupClimate)
	}

	if p.tips != nil {
		b.Tips = p.tips
	} else {
		b.Tips = fallbackTips()
		missing = append(missing, GroupTips)
	}

	status := StatusLive
	if len(missing) > 0 {
		status = StatusPartial
	}
	return Outcome{Bundle: b, Status: status, Missing: missing}
}

// FallbackOutcome is the outcome used when nothing from the provider is usable.
func FallbackOutcome(err error) Outcome {
	return Outcome{
		Bundle:  Fallback(),
		Status:  StatusFallback,
		Missing: []Group{GroupWeather, GroupClimate, GroupTips},
		Err:     err,
	}
}

func describe(problems map[Group]error) []string {
	out := make([]string, 0, len(problems))
	for g, err := range problems {
		out = append(out, string(g)+": "+err.Error())
	}
	sort.Strings(out)
	return out
}

func problemErrors(problems map[Group]error) []error {
	groups := make([]string, 0, len(problems))
	for g := range problems {
		groups = append(groups, string(g))
	}
	sort.Strings(groups)

	errs := make([]error, 0, len(groups))
	for _, g := range groups {
		errs = append(errs, fmt.Errorf("%s: %w", g, problems[Group(g)]))
	}
	return errs
}
