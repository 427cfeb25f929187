package recommend

import (
	"sort"
	"strings"

	"github.com/Udit004/alumni-networking-sub003/src/models"
	"golang.org/x/text/cases"
)

// DefaultMutualWeight is the score added per mutual connection
const DefaultMutualWeight = 2

// DefaultTopN is how many suggestions are shown when no limit is given
const DefaultTopN = 10

// Signal is one additive term of the relevance score. Match returns how many
// times the signal fires for the pair; the contribution is Weight times that.
type Signal struct {
	Name   string
	Weight int
	Match  func(self, cand *models.User) int
}

// Affinity rewards a pair of roles that share a profile field. The role pair
// is unordered.
type Affinity struct {
	Roles  [2]models.Role
	Field  string
	Weight int
	Value  func(u *models.User) string
}

// Contribution is one non-zero term of a score
type Contribution struct {
	Signal string
	Points int
}

var profileSignals = []Signal{
	{Name: "company", Weight: 5, Match: sameField(func(u *models.User) string { return u.Company })},
	{Name: "industry", Weight: 4, Match: sameField(func(u *models.User) string { return u.Industry })},
	{Name: "institution", Weight: 3, Match: sameField(func(u *models.User) string { return u.Institution })},
	{Name: "batch", Weight: 3, Match: sameField(func(u *models.User) string { return u.Batch })},
	{Name: "shared_tag", Weight: 2, Match: sharedTags},
}

func program(u *models.User) string    { return u.Program }
func department(u *models.User) string { return u.Department }

var roleAffinities = []Affinity{
	{Roles: [2]models.Role{models.RoleAlumni, models.RoleStudent}, Field: "program", Weight: 4, Value: program},
	{Roles: [2]models.Role{models.RoleAlumni, models.RoleTeacher}, Field: "department", Weight: 3, Value: department},
	{Roles: [2]models.Role{models.RoleTeacher, models.RoleStudent}, Field: "department", Weight: 4, Value: department},
	{Roles: [2]models.Role{models.RoleStudent, models.RoleStudent}, Field: "program", Weight: 5, Value: program},
	{Roles: [2]models.Role{models.RoleTeacher, models.RoleTeacher}, Field: "department", Weight: 5, Value: department},
}

// Scorer computes relevance scores from a fixed weight table
type Scorer struct {
	signals      []Signal
	affinities   []Affinity
	mutualWeight int
}

// Option configures a Scorer
type Option func(*Scorer)

// WithMutualWeight sets the points per mutual connection
func WithMutualWeight(w int) Option {
	return func(s *Scorer) { s.mutualWeight = w }
}

// WithSignals appends extra signals to the table
func WithSignals(extra ...Signal) Option {
	return func(s *Scorer) { s.signals = append(s.signals, extra...) }
}

// NewScorer creates a scorer with the default weight table
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		signals:      append([]Signal(nil), profileSignals...),
		affinities:   roleAffinities,
		mutualWeight: DefaultMutualWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the relevance of cand for self
func (s *Scorer) Score(self, cand *models.User) int {
	total := 0
	for _, c := range s.Breakdown(self, cand) {
		total += c.Points
	}
	return total
}

// Breakdown lists every non-zero term of the score in table order
func (s *Scorer) Breakdown(self, cand *models.User) []Contribution {
	var out []Contribution
	for _, sig := range s.signals {
		if n := sig.Match(self, cand); n > 0 {
			out = append(out, Contribution{Signal: sig.Name, Points: n * sig.Weight})
		}
	}
	for _, a := range s.affinities {
		if a.applies(self.Role, cand.Role) && equalNonEmpty(a.Value(self), a.Value(cand)) {
			out = append(out, Contribution{Signal: "affinity_" + a.Field, Points: a.Weight})
		}
	}
	if n := MutualCount(self, cand); n > 0 && s.mutualWeight != 0 {
		out = append(out, Contribution{Signal: "mutual", Points: n * s.mutualWeight})
	}
	return out
}

// Suggestion is a ranked candidate
type Suggestion struct {
	User    models.UserDto `json:"user"`
	Score   int            `json:"score"`
	Mutual  int            `json:"mutualConnections"`
	Reasons []Contribution `json:"reasons,omitempty"`
}

// Rank scores every candidate and sorts by score, then mutual count, keeping
// input order for full ties. The pool is not filtered; see Candidates.
func (s *Scorer) Rank(self *models.User, pool []models.User) []Suggestion {
	ranked := make([]Suggestion, 0, len(pool))
	for i := range pool {
		cand := &pool[i]
		reasons := s.Breakdown(self, cand)
		score := 0
		for _, c := range reasons {
			score += c.Points
		}
		ranked = append(ranked, Suggestion{
			User:    cand.Dto(),
			Score:   score,
			Mutual:  MutualCount(self, cand),
			Reasons: reasons,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Mutual > ranked[j].Mutual
	})
	return ranked
}

// Top truncates a ranking to n entries
func Top(ranked []Suggestion, n int) []Suggestion {
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// Candidates drops self, existing connections and anyone with a pending
// request in either direction, as seen from either document
func Candidates(self *models.User, pool []models.User) []models.User {
	out := make([]models.User, 0, len(pool))
	for i := range pool {
		c := &pool[i]
		if c.Id == self.Id ||
			self.IsConnectedTo(c.Id) || c.IsConnectedTo(self.Id) ||
			self.HasOutgoing(c.Id) || self.HasIncoming(c.Id) ||
			c.HasOutgoing(self.Id) || c.HasIncoming(self.Id) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// MutualCount returns how many connections self and cand share
func MutualCount(self, cand *models.User) int {
	if len(self.Connections) == 0 || len(cand.Connections) == 0 {
		return 0
	}
	mine := make(map[string]struct{}, len(self.Connections))
	for _, id := range self.Connections {
		mine[id] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{}, len(cand.Connections))
	for _, id := range cand.Connections {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := mine[id]; ok {
			n++
		}
	}
	return n
}

func (a Affinity) applies(x, y models.Role) bool {
	return (a.Roles[0] == x && a.Roles[1] == y) || (a.Roles[0] == y && a.Roles[1] == x)
}

func sameField(get func(u *models.User) string) func(self, cand *models.User) int {
	return func(self, cand *models.User) int {
		if equalNonEmpty(get(self), get(cand)) {
			return 1
		}
		return 0
	}
}

// sharedTags counts distinct skills and expertise entries both users list,
// compared case-insensitively
func sharedTags(self, cand *models.User) int {
	mine := tagSet(self)
	if len(mine) == 0 {
		return 0
	}
	n := 0
	for tag := range tagSet(cand) {
		if _, ok := mine[tag]; ok {
			n++
		}
	}
	return n
}

func tagSet(u *models.User) map[string]struct{} {
	// a Caser keeps state, so each call gets its own
	fold := cases.Fold()
	set := make(map[string]struct{}, len(u.Skills)+len(u.Expertise))
	for _, list := range [][]string{u.Skills, u.Expertise} {
		for _, tag := range list {
			t := strings.TrimSpace(fold.String(tag))
			if t != "" {
				set[t] = struct{}{}
			}
		}
	}
	return set
}

func equalNonEmpty(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
