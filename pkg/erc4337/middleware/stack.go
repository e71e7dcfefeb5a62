// Package middleware runs the ordered stages that turn a bare UserOperation
// draft into one with gas, fee and paymaster fields filled in.
package middleware

import (
	"context"
	"math/big"
	"time"

	"github.com/AvaProtocol/ap-aa-sdk/metrics"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/eip1559"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

const (
	StageDummyPaymasterData = "dummyPaymasterData"
	StageFeeDataGetter      = "feeDataGetter"
	StageGasEstimator       = "gasEstimator"
	StageOverridesApply     = "overridesApply"
	StageCustomMiddleware   = "customMiddleware"
	StagePaymasterData      = "paymasterData"
)

// StageFunc receives the running draft and the caller overrides and returns a
// patch. Fields set in the patch replace the draft's fields.
type StageFunc func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error)

type Stage struct {
	Name string
	Fn   StageFunc
}

// Stack holds one function per stage. The order is fixed:
// dummyPaymasterData, feeDataGetter, gasEstimator, overridesApply,
// customMiddleware, paymasterData.
type Stack struct {
	dummyPaymasterData StageFunc
	feeDataGetter      StageFunc
	gasEstimator       StageFunc
	customMiddleware   StageFunc
	paymasterData      StageFunc

	logger  logger.Logger
	metrics metrics.MetricsGenerator
}

type Option func(*Stack)

// WithFeeDataGetter replaces the default fee stage.
func WithFeeDataGetter(fn StageFunc) Option {
	return func(s *Stack) { s.feeDataGetter = fn }
}

func WithGasEstimator(fn StageFunc) Option {
	return func(s *Stack) { s.gasEstimator = fn }
}

func WithCustomMiddleware(fn StageFunc) Option {
	return func(s *Stack) { s.customMiddleware = fn }
}

// WithPaymasterMiddleware sets both paymaster stages. dummy runs first so gas
// estimation sees a paymasterAndData of the right size, real runs last on
// the final gas and fee values.
func WithPaymasterMiddleware(dummy, real StageFunc) Option {
	return func(s *Stack) {
		s.dummyPaymasterData = dummy
		s.paymasterData = real
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Stack) { s.logger = logger.ForComponent(l, "middleware") }
}

func WithMetrics(m metrics.MetricsGenerator) Option {
	return func(s *Stack) { s.metrics = metrics.EnsureMetrics(m) }
}

// NewStack builds a stack with default stages. fees feeds the default fee
// stage with priority fee floor; when fees is nil that stage leaves the fee
// fields alone.
func NewStack(fees eip1559.FeeReader, floor *big.Int, opts ...Option) *Stack {
	s := &Stack{
		dummyPaymasterData: EmptyPaymasterData,
		feeDataGetter:      Noop,
		gasEstimator:       Noop,
		customMiddleware:   Noop,
		paymasterData:      EmptyPaymasterData,
		logger:             logger.ForComponent(nil, "middleware"),
		metrics:            metrics.EnsureMetrics(nil),
	}
	if fees != nil {
		s.feeDataGetter = DefaultFeeDataGetter(fees, floor)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Noop leaves the draft unchanged.
func Noop(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
	return userop.Draft{}, nil
}

// EmptyPaymasterData is the paymaster stage without a paymaster.
func EmptyPaymasterData(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
	return userop.Draft{PaymasterAndData: userop.Known([]byte{})}, nil
}

func applyOverrides(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
	return overrides.Patch(), nil
}

// Stages returns the stages in execution order.
func (s *Stack) Stages() []Stage {
	return []Stage{
		{Name: StageDummyPaymasterData, Fn: s.dummyPaymasterData},
		{Name: StageFeeDataGetter, Fn: s.feeDataGetter},
		{Name: StageGasEstimator, Fn: s.gasEstimator},
		{Name: StageOverridesApply, Fn: applyOverrides},
		{Name: StageCustomMiddleware, Fn: s.customMiddleware},
		{Name: StagePaymasterData, Fn: s.paymasterData},
	}
}

// Run folds the stages over draft. Once overridesApply has run the caller
// overrides are re-applied after every later stage, so they always win. The
// first failing stage aborts the run.
func (s *Stack) Run(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
	overridesActive := false

	for _, stage := range s.Stages() {
		if err := ctx.Err(); err != nil {
			return userop.Draft{}, &StageFailureError{Stage: stage.Name, Err: err}
		}

		start := time.Now()
		patch, err := stage.Fn(ctx, draft, overrides)
		elapsed := time.Since(start)
		s.metrics.ObserveStage(stage.Name, elapsed)

		if err != nil {
			s.metrics.IncStageFailure(stage.Name)
			s.logger.Warn("middleware stage failed", "stage", stage.Name, "error", err)
			return userop.Draft{}, &StageFailureError{Stage: stage.Name, Err: err}
		}

		draft = draft.Merge(patch)
		if stage.Name == StageOverridesApply {
			overridesActive = true
		}
		if overridesActive {
			draft = overrides.Apply(draft)
		}

		s.logger.Debug("middleware stage done", "stage", stage.Name, "elapsed", elapsed.String())
	}

	return draft, nil
}
