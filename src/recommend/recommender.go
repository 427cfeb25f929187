package recommend

import (
	"context"

	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recommender loads a user and the directory and ranks suggestions
type Recommender struct {
	store  graph.Store
	scorer *Scorer
	limit  int
	logger *zap.Logger
}

// NewRecommender creates a recommender; limit is the default top-N
func NewRecommender(store graph.Store, scorer *Scorer, limit int) *Recommender {
	if limit <= 0 {
		limit = DefaultTopN
	}
	return &Recommender{
		store:  store,
		scorer: scorer,
		limit:  limit,
		logger: lib.Log(),
	}
}

// Suggestions returns the top ranked candidates for userID
func (r *Recommender) Suggestions(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = r.limit
	}

	var self *models.User
	var pool []models.User

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		self, err = r.store.ReadUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = r.store.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := Candidates(self, pool)
	ranked := Top(r.scorer.Rank(self, candidates), limit)

	r.logger.Debug("Suggestions ranked",
		zap.String("user_id", userID),
		zap.Int("pool", len(pool)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(ranked)))
	return ranked, nil
}
