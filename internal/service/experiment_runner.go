package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// ExperimentRunner manages A/B price experiments: one running experiment per
// product, sticky session bucketing, and a two-proportion significance test
// on completion.
type ExperimentRunner struct {
	store        *store.Store
	orchestrator *Orchestrator
	cfg          config.PricingConfig
	logger       *zap.Logger
}

// NewExperimentRunner creates a new experiment runner
func NewExperimentRunner(store *store.Store, orchestrator *Orchestrator, cfg config.PricingConfig) *ExperimentRunner {
	return &ExperimentRunner{
		store:        store,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       util.NamedLogger("experiments"),
	}
}

// StartExperimentRequest creates a running experiment. ControlPrice zero
// defaults to the product's current price.
type StartExperimentRequest struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	ControlPrice float64 `json:"control_price"`
	VariantPrice float64 `json:"variant_price"`
}

// Start creates and immediately starts an experiment. At most one experiment
// may run per product at a time.
func (r *ExperimentRunner) Start(ctx context.Context, req StartExperimentRequest) (*models.PriceExperiment, error) {
	ctx, span := util.StartSpan(ctx, "ExperimentRunner.Start")
	defer span.End()

	product, err := r.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: experiment name is required", ErrInvalidRule)
	}
	if req.ControlPrice == 0 {
		req.ControlPrice = product.CurrentPrice
	}
	if req.ControlPrice <= 0 || req.VariantPrice <= 0 {
		return nil, fmt.Errorf("%w: experiment prices must be positive", ErrInvalidPrice)
	}

	running, err := r.store.GetRunningExperiment(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, fmt.Errorf("%w: experiment %d is already running for product %d",
			ErrExperimentConflict, running.ID, req.ProductID)
	}

	exp := newRunningExperiment(req)
	if err := r.store.CreateExperiment(ctx, exp); err != nil {
		return nil, err
	}

	util.ExperimentsStartedTotal.Inc()
	r.logger.Info("experiment started",
		zap.Int64("experiment_id", exp.ID),
		zap.Int64("product_id", exp.ProductID),
		zap.Float64("control_price", exp.ControlPrice),
		zap.Float64("variant_price", exp.VariantPrice))
	return exp, nil
}

// newRunningExperiment builds the row for a freshly started experiment.
// started_at is set here: winner attribution in analytics joins price history
// against it, so a running experiment must always carry one.
func newRunningExperiment(req StartExperimentRequest) *models.PriceExperiment {
	return &models.PriceExperiment{
		ProductID:    req.ProductID,
		Name:         req.Name,
		ControlPrice: roundPrice(req.ControlPrice),
		VariantPrice: roundPrice(req.VariantPrice),
		Status:       models.ExperimentStatusRunning,
		StartedAt:    sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}
}

// AssignArm deterministically buckets a session into control or variant. The
// same session always lands in the same arm for the life of the experiment.
func AssignArm(sessionID string, experimentID int64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", sessionID, experimentID)
	if h.Sum64()%2 == 0 {
		return models.ArmControl
	}
	return models.ArmVariant
}

// PriceForSession returns the price a session should see for a product,
// honoring any running experiment. With no experiment the second return is
// empty and the caller uses the normal price.
func (r *ExperimentRunner) PriceForSession(ctx context.Context, productID int64, sessionID string) (float64, string, error) {
	exp, err := r.store.GetRunningExperiment(ctx, productID)
	if err != nil {
		return 0, "", err
	}
	if exp == nil || sessionID == "" {
		return 0, "", nil
	}
	arm := AssignArm(sessionID, exp.ID)
	if arm == models.ArmVariant {
		return exp.VariantPrice, arm, nil
	}
	return exp.ControlPrice, arm, nil
}

// RecordImpression counts one exposure for the session's arm. Counts on a
// non-running experiment are dropped.
func (r *ExperimentRunner) RecordImpression(ctx context.Context, experimentID int64, sessionID string) error {
	arm := AssignArm(sessionID, experimentID)
	err := r.store.IncrementImpression(ctx, experimentID, arm)
	if errors.Is(err, store.ErrExperimentNotFound) {
		return nil
	}
	return err
}

// RecordConversion counts one purchase for the session's arm.
func (r *ExperimentRunner) RecordConversion(ctx context.Context, experimentID int64, sessionID string, revenue float64) error {
	arm := AssignArm(sessionID, experimentID)
	err := r.store.IncrementConversion(ctx, experimentID, arm, revenue)
	if errors.Is(err, store.ErrExperimentNotFound) {
		return nil
	}
	return err
}

// ArmStats is one arm's observed performance.
type ArmStats struct {
	Price          float64 `json:"price"`
	Impressions    int64   `json:"impressions"`
	Conversions    int64   `json:"conversions"`
	Revenue        float64 `json:"revenue"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ExperimentResults is the statistical readout for an experiment.
type ExperimentResults struct {
	Experiment  *models.PriceExperiment `json:"experiment"`
	Control     ArmStats                `json:"control"`
	Variant     ArmStats                `json:"variant"`
	ZScore      float64                 `json:"z_score"`
	PValue      float64                 `json:"p_value"`
	Significant bool                    `json:"significant"`
	Winner      string                  `json:"winner,omitempty"`
	Verdict     string                  `json:"verdict"`
}

// Results computes conversion rates and the significance test for an
// experiment in any state.
func (r *ExperimentRunner) Results(ctx context.Context, experimentID int64) (*ExperimentResults, error) {
	exp, err := r.store.GetExperimentByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	return r.evaluate(exp), nil
}

func (r *ExperimentRunner) evaluate(exp *models.PriceExperiment) *ExperimentResults {
	res := &ExperimentResults{
		Experiment: exp,
		Control: ArmStats{
			Price:       exp.ControlPrice,
			Impressions: exp.ControlImpressions,
			Conversions: exp.ControlConversions,
			Revenue:     exp.ControlRevenue,
		},
		Variant: ArmStats{
			Price:       exp.VariantPrice,
			Impressions: exp.VariantImpressions,
			Conversions: exp.VariantConversions,
			Revenue:     exp.VariantRevenue,
		},
	}
	if exp.ControlImpressions > 0 {
		res.Control.ConversionRate = float64(exp.ControlConversions) / float64(exp.ControlImpressions)
	}
	if exp.VariantImpressions > 0 {
		res.Variant.ConversionRate = float64(exp.VariantConversions) / float64(exp.VariantImpressions)
	}

	res.ZScore, res.PValue = TwoProportionZTest(
		exp.ControlConversions, exp.ControlImpressions,
		exp.VariantConversions, exp.VariantImpressions)

	minSamples := int64(r.cfg.ExperimentMinSamples)
	enough := exp.ControlImpressions >= minSamples && exp.VariantImpressions >= minSamples
	res.Significant = enough && res.PValue < r.cfg.ExperimentAlpha

	switch {
	case !enough:
		res.Verdict = fmt.Sprintf("inconclusive: need at least %d impressions per arm", minSamples)
	case !res.Significant:
		res.Verdict = fmt.Sprintf("inconclusive: p-value %.4f above threshold %.2f", res.PValue, r.cfg.ExperimentAlpha)
	case res.Variant.ConversionRate > res.Control.ConversionRate:
		res.Winner = models.ArmVariant
		res.Verdict = fmt.Sprintf("variant wins: p-value %.4f", res.PValue)
	default:
		res.Winner = models.ArmControl
		res.Verdict = fmt.Sprintf("control wins: p-value %.4f", res.PValue)
	}
	return res
}

// WinningPrice returns the price to adopt and whether a significant winner
// exists. A control win matters too: the control price may differ from the
// product's current price.
func (res *ExperimentResults) WinningPrice() (float64, bool) {
	if !res.Significant {
		return 0, false
	}
	if res.Winner == models.ArmVariant {
		return res.Variant.Price, true
	}
	return res.Control.Price, true
}

// TwoProportionZTest is a pooled two-proportion z-test. Returns the z score
// and the two-tailed p-value; degenerate inputs yield p = 1.
func TwoProportionZTest(conversionsA, trialsA, conversionsB, trialsB int64) (z, p float64) {
	if trialsA == 0 || trialsB == 0 {
		return 0, 1
	}
	pA := float64(conversionsA) / float64(trialsA)
	pB := float64(conversionsB) / float64(trialsB)
	pooled := float64(conversionsA+conversionsB) / float64(trialsA+trialsB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(trialsA) + 1/float64(trialsB)))
	if se == 0 {
		return 0, 1
	}
	z = (pB - pA) / se
	p = math.Erfc(math.Abs(z) / math.Sqrt2)
	return z, p
}

// Complete ends a running experiment. A significant result applies the winning
// arm's price through the orchestrator; an inconclusive one leaves the price
// untouched.
func (r *ExperimentRunner) Complete(ctx context.Context, experimentID int64) (*ExperimentResults, error) {
	ctx, span := util.StartSpan(ctx, "ExperimentRunner.Complete")
	defer span.End()

	exp, err := r.store.GetExperimentByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != models.ExperimentStatusRunning {
		return nil, fmt.Errorf("%w: experiment %d is %s", ErrExperimentNotRunning, exp.ID, exp.Status)
	}

	res := r.evaluate(exp)

	if err := r.store.FinishExperiment(ctx, exp.ID, models.ExperimentStatusCompleted); err != nil {
		return nil, err
	}
	exp.Status = models.ExperimentStatusCompleted
	exp.CompletedAt.Time = time.Now().UTC()
	exp.CompletedAt.Valid = true

	outcome := "inconclusive"
	if price, ok := res.WinningPrice(); ok {
		outcome = "control_win"
		if res.Winner == models.ArmVariant {
			outcome = "variant_win"
		}
		_, err := r.orchestrator.ApplyPriceChange(ctx, ApplyPriceChangeRequest{
			ProductID: exp.ProductID,
			NewPrice:  price,
			Reason:    models.ChangeReasonManual,
			Notes:     "experiment winner",
		})
		if err != nil {
			r.logger.Error("failed to apply winning price",
				zap.Int64("experiment_id", exp.ID),
				zap.String("winner", res.Winner), zap.Error(err))
			res.Verdict += "; price update failed"
		}
	}

	util.ExperimentsCompletedTotal.WithLabelValues(outcome).Inc()
	r.logger.Info("experiment completed",
		zap.Int64("experiment_id", exp.ID),
		zap.String("outcome", outcome),
		zap.Float64("p_value", res.PValue))
	return res, nil
}

// Cancel ends a running experiment without touching the price.
func (r *ExperimentRunner) Cancel(ctx context.Context, experimentID int64) (*models.PriceExperiment, error) {
	exp, err := r.store.GetExperimentByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != models.ExperimentStatusRunning {
		return nil, fmt.Errorf("%w: experiment %d is %s", ErrExperimentNotRunning, exp.ID, exp.Status)
	}
	if err := r.store.FinishExperiment(ctx, exp.ID, models.ExperimentStatusCancelled); err != nil {
		return nil, err
	}
	exp.Status = models.ExperimentStatusCancelled
	exp.CompletedAt.Time = time.Now().UTC()
	exp.CompletedAt.Valid = true

	util.ExperimentsCompletedTotal.WithLabelValues("cancelled").Inc()
	r.logger.Info("experiment cancelled", zap.Int64("experiment_id", exp.ID))
	return exp, nil
}

// Get returns one experiment by id.
func (r *ExperimentRunner) Get(ctx context.Context, experimentID int64) (*models.PriceExperiment, error) {
	return r.store.GetExperimentByID(ctx, experimentID)
}

// List returns experiments filtered by product and status.
func (r *ExperimentRunner) List(ctx context.Context, productID int64, status string) ([]models.PriceExperiment, error) {
	if status != "" {
		switch status {
		case models.ExperimentStatusRunning, models.ExperimentStatusCompleted, models.ExperimentStatusCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown experiment status %q", ErrInvalidRule, status)
		}
	}
	return r.store.ListExperiments(ctx, productID, status)
}
