package usecase

import (
	"log"
	"sort"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// scoreTable accumulates scores per identity and remembers insertion order
// so that ties keep a stable order.
type scoreTable struct {
	scores map[string]int
	order  []string
}

func newScoreTable() *scoreTable {
	return &scoreTable{scores: make(map[string]int)}
}

func (t *scoreTable) add(identity string, n int) {
	if _, ok := t.scores[identity]; !ok {
		t.order = append(t.order, identity)
	}
	t.scores[identity] += n
}

func (t *scoreTable) ranked(emails map[string]string) []domain.Score {
	out := make([]domain.Score, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, domain.Score{Identity: id, Email: emails[id], Value: t.scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

// Aggregator is the use case for combining repository analyses into contributor rankings.
// An Aggregator belongs to a single run.
type Aggregator struct {
	commits  *scoreTable
	reviews  *scoreTable
	activity *scoreTable
	emails   map[string]string
	logger   *log.Logger
}

// NewAggregator creates a new Aggregator instance with empty score tables.
func NewAggregator(logger *log.Logger) *Aggregator {
	return &Aggregator{
		commits:  newScoreTable(),
		reviews:  newScoreTable(),
		activity: newScoreTable(),
		emails:   make(map[string]string),
		logger:   logger,
	}
}

// Add folds one repository analysis into the score tables. A nil analysis is ignored.
func (a *Aggregator) Add(analysis *domain.RepositoryAnalysis) {
	if analysis == nil {
		return
	}
	for _, rec := range analysis.PRAuthors.Records() {
		a.commits.add(rec.Identity, rec.Count)
		a.activity.add(rec.Identity, rec.Count)
		a.rememberEmail(rec)
	}
	for _, rec := range analysis.Reviewers.Records() {
		a.reviews.add(rec.Identity, rec.Count)
		a.activity.add(rec.Identity, rec.Count)
		a.rememberEmail(rec)
	}
}

// AddResults folds every successful analysis of a run.
func (a *Aggregator) AddResults(results []domain.RepositoryResult) {
	for _, r := range results {
		a.Add(r.Analysis)
	}
	a.logger.Printf("Usecase: Aggregated %d contributors.", len(a.activity.order))
}

func (a *Aggregator) rememberEmail(rec domain.ContributorRecord) {
	if current, ok := a.emails[rec.Identity]; !ok || current == domain.EmailNotAvailable {
		a.emails[rec.Identity] = rec.Email
	}
}

// Rankings returns the full ranked lists, highest score first.
func (a *Aggregator) Rankings() domain.Rankings {
	return domain.Rankings{
		Committers: a.commits.ranked(a.emails),
		Reviewers:  a.reviews.ranked(a.emails),
		Overall:    a.activity.ranked(a.emails),
	}
}

// CommitScore returns the number of pull requests authored by identity.
func (a *Aggregator) CommitScore(identity string) int {
	return a.commits.scores[identity]
}

// ReviewScore returns the number of reviews submitted by identity.
func (a *Aggregator) ReviewScore(identity string) int {
	return a.reviews.scores[identity]
}

// ActivityScore returns CommitScore + ReviewScore.
func (a *Aggregator) ActivityScore(identity string) int {
	return a.activity.scores[identity]
}
