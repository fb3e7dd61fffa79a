// Package filter selects requests with expr-lang expressions.
//
// Expressions see the record fields (Kind, Title, ExternalID, AcquisitionID,
// ReleaseDate, Year, Seasons, RequestedBy, RequestedByEmail, CreatedAt) and a
// set of helpers, for example:
//
//	isShow() and hasSeason(1)
//	requestedBy("alice") and daysSince(CreatedAt) > 30
//	hasText(Title, "star") or Year < 1990
//	lower(Title) startsWith "the"
//
// Unknown names are compile errors.
package filter

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/requestarr/store"
)

// Filter is a compiled expression. It is safe for concurrent use.
type Filter struct {
	expression string
	program    *vm.Program
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache enables caching of compiled filters
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = newLRUCache(size)
		}
	}
}

// Compiler turns expressions into Filters
type Compiler struct {
	cache *lruCache
}

// NewCompiler creates a compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses expression. Results are cached when WithCache was given.
func (c *Compiler) Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(Env{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	f := &Filter{expression: expression, program: program}
	if c.cache != nil {
		c.cache.Put(expression, f)
	}
	return f, nil
}

// CacheSize returns the number of cached filters
func (c *Compiler) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Size()
}

// Expression returns the source expression
func (f *Filter) Expression() string {
	return f.expression
}

// Match reports whether rec satisfies the filter. A runtime error is a
// non-match.
func (f *Filter) Match(rec *store.Record) bool {
	out, err := expr.Run(f.program, newEnv(rec))
	if err != nil {
		return false
	}
	return out.(bool)
}

// Apply returns the records that match, keeping their order
func (f *Filter) Apply(records []*store.Record) []*store.Record {
	matches := make([]*store.Record, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			matches = append(matches, rec)
		}
	}
	return matches
}

// Env is what an expression is evaluated against. Fields are exposed under
// their Go names and functions under their expr tags.
type Env struct {
	Kind             string
	Title            string
	ExternalID       string
	AcquisitionID    string
	ReleaseDate      string
	Year             int
	Seasons          []int
	RequestedBy      string
	RequestedByEmail string
	CreatedAt        time.Time

	IsMovie         func() bool          `expr:"isMovie"`
	IsShow          func() bool          `expr:"isShow"`
	RequestedByUser func(string) bool    `expr:"requestedBy"`
	RequestedAfter  func(time.Time) bool `expr:"requestedAfter"`
	RequestedBefore func(time.Time) bool `expr:"requestedBefore"`
	HasSeason       func(int) bool       `expr:"hasSeason"`

	DaysSince func(time.Time) int       `expr:"daysSince"`
	DaysAgo   func(int) time.Time       `expr:"daysAgo"`
	MonthsAgo func(int) time.Time       `expr:"monthsAgo"`
	ParseDate func(string) time.Time    `expr:"parseDate"`
	HasText   func(string, string) bool `expr:"hasText"`
}

func newEnv(rec *store.Record) Env {
	year, _ := strconv.Atoi(rec.Year())

	return Env{
		Kind:             string(rec.Kind),
		Title:            rec.Title,
		ExternalID:       rec.ExternalID,
		AcquisitionID:    rec.AcquisitionID,
		ReleaseDate:      rec.ReleaseDate,
		Year:             year,
		Seasons:          rec.Seasons,
		RequestedBy:      rec.RequestedBy,
		RequestedByEmail: rec.RequestedByEmail,
		CreatedAt:        rec.CreatedAt,

		IsMovie: func() bool { return rec.Kind == store.KindMovie },
		IsShow:  func() bool { return rec.Kind == store.KindShow },
		RequestedByUser: func(username string) bool {
			return strings.EqualFold(rec.RequestedBy, username)
		},
		RequestedAfter:  func(t time.Time) bool { return rec.CreatedAt.After(t) },
		RequestedBefore: func(t time.Time) bool { return rec.CreatedAt.Before(t) },
		HasSeason:       func(n int) bool { return slices.Contains(rec.Seasons, n) },

		DaysSince: func(t time.Time) int {
			return int(time.Since(t).Hours() / 24)
		},
		DaysAgo: func(days int) time.Time {
			return time.Now().AddDate(0, 0, -days)
		},
		MonthsAgo: func(months int) time.Time {
			return time.Now().AddDate(0, -months, 0)
		},
		ParseDate: func(dateStr string) time.Time {
			t, _ := time.Parse("2006-01-02", dateStr)
			return t
		},
		HasText: func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
	}
}
