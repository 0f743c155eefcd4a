package layers

import (
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/breaker"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Deps are the collaborators of the built-in layer set. Nil collaborators
// leave their layers unregistered, so those layers always fail.
type Deps struct {
	Calendar         contracts.CalendarSource
	AIScorer         contracts.AIScorer
	AnalysisURL      string
	AnalysisClient   *httputil.Client
	AnalysisBreaker  *breaker.Breaker
	PassScore        int
	AIPassConfidence float64
	NewsBlackout     time.Duration
	Logger           *logger.Logger
}

// RemoteLayers are served by the analysis service
var RemoteLayers = []contracts.LayerID{
	contracts.LayerWyckoff,
	contracts.LayerOrderFlow,
	contracts.LayerIntermarket,
	contracts.LayerSentiment,
}

// DefaultSet builds every evaluator whose collaborators are present
func DefaultSet(d Deps) []Evaluator {
	pass := d.PassScore
	if pass <= 0 {
		pass = DefaultPassScore
	}

	set := []Evaluator{
		NewSMCEvaluator(pass),
		NewStructureEvaluator(pass),
		NewVSAEvaluator(pass),
		NewTechnicalEvaluator(pass, d.Logger),
	}

	if d.Calendar != nil {
		set = append(set, NewFundamentalEvaluator(d.Calendar, d.NewsBlackout))
	}
	if d.AIScorer != nil {
		threshold := d.AIPassConfidence
		if threshold <= 0 {
			threshold = DefaultAIPassConfidence
		}
		set = append(set, NewAIEvaluator(d.AIScorer, threshold))
	}
	if d.AnalysisURL != "" && d.AnalysisClient != nil {
		cb := d.AnalysisBreaker
		if cb == nil {
			cb = breaker.New("analysis-service", breaker.Settings{}, d.Logger)
		}
		for _, id := range RemoteLayers {
			set = append(set, NewRemoteEvaluator(id, d.AnalysisURL, d.AnalysisClient, cb))
		}
	}

	return set
}
