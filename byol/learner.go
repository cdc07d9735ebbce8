package byol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/ema"
	"github.com/hupe1980/knnmon/matrix"
	"github.com/hupe1980/knnmon/sink"
)

// ErrNilView is returned when a training step receives a missing view.
var ErrNilView = errors.New("byol: missing view")

// Network is an encoder whose parameters can be read and blended in place.
type Network interface {
	bank.Encoder
	ema.Params
}

// Optimizer backpropagates loss through the online network and predictor
// and applies one update. The loss value is passed for bookkeeping; the
// implementation owns the autodiff graph.
type Optimizer interface {
	Step(ctx context.Context, loss float64) error
}

// Views are two augmentations of the same batch.
type Views struct {
	First  *matrix.Dense
	Second *matrix.Dense
}

// StepResult describes one finished training step.
type StepResult struct {
	Step int64
	Loss float64
	Tau  float64 // Tau used for the target update of this step.
}

// Learner runs BYOL training steps. Steps are serialized.
type Learner struct {
	online    Network
	target    Network
	predictor bank.Encoder
	optimizer Optimizer
	scheduler *ema.Scheduler

	sink    sink.Sink
	logger  *slog.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	step int64
}

// Option configures a Learner.
type Option func(*Learner)

// WithSink sets the metric sink that receives train_loss.
func WithSink(s sink.Sink) Option {
	return func(l *Learner) {
		if s != nil {
			l.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLogInterval limits step log records to one per interval.
// Zero logs every step.
func WithLogInterval(d time.Duration) Option {
	return func(l *Learner) {
		if d <= 0 {
			l.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		l.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewLearner creates a Learner. The target network is initialized with a copy
// of the online parameters.
func NewLearner(online, target Network, predictor bank.Encoder, optimizer Optimizer, schedule ema.Schedule, optFns ...Option) (*Learner, error) {
	if online == nil || target == nil || predictor == nil || optimizer == nil {
		return nil, errors.New("byol: online, target, predictor and optimizer are required")
	}
	sched, err := ema.NewScheduler(schedule)
	if err != nil {
		return nil, err
	}
	if err := ema.Copy(target, online); err != nil {
		return nil, fmt.Errorf("byol: initialize target: %w", err)
	}

	l := &Learner{
		online:    online,
		target:    target,
		predictor: predictor,
		optimizer: optimizer,
		scheduler: sched,
		sink:      sink.Discard{},
		logger:    slog.New(slog.DiscardHandler),
		limiter:   rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(l)
		}
	}
	return l, nil
}

// Step returns the number of completed training steps.
func (l *Learner) Step() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.step
}

// Tau returns the decay rate the next step will use.
func (l *Learner) Tau() float64 { return l.scheduler.Tau() }

// TrainingStep performs one BYOL step:
//
//	z1 = online(x1), z2 = target(x2), p1 = predictor(z1)
//	loss = RegressionLoss(p1, z2)
//
// then runs the optimizer, blends the target towards the online network with
// the current tau and advances the schedule.
func (l *Learner) TrainingStep(ctx context.Context, v Views) (StepResult, error) {
	if v.First == nil || v.Second == nil {
		return StepResult{}, ErrNilView
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	z1, err := l.online.Encode(ctx, v.First)
	if err != nil {
		return StepResult{}, fmt.Errorf("online forward: %w", err)
	}
	z2, err := l.targetForward(ctx, v.Second)
	if err != nil {
		return StepResult{}, fmt.Errorf("target forward: %w", err)
	}
	p1, err := l.predictor.Encode(ctx, z1)
	if err != nil {
		return StepResult{}, fmt.Errorf("predictor forward: %w", err)
	}

	loss, err := RegressionLoss(p1, z2)
	if err != nil {
		return StepResult{}, err
	}
	if err := l.optimizer.Step(ctx, loss); err != nil {
		return StepResult{}, fmt.Errorf("optimizer step: %w", err)
	}

	tau := l.scheduler.Tau()
	if err := ema.Update(l.target, l.online, tau); err != nil {
		return StepResult{}, fmt.Errorf("target update: %w", err)
	}
	l.scheduler.Advance()
	l.step++

	res := StepResult{Step: l.step, Loss: loss, Tau: tau}
	if err := l.sink.Log(ctx, sink.TrainLoss, loss, l.step); err != nil {
		l.logger.WarnContext(ctx, "metric sink failed", "metric", sink.TrainLoss, "error", err)
	}
	if l.limiter.Allow() {
		l.logger.InfoContext(ctx, "training step", "step", res.Step, "loss", res.Loss, "tau", res.Tau)
	}
	return res, nil
}

func (l *Learner) targetForward(ctx context.Context, x *matrix.Dense) (*matrix.Dense, error) {
	if gs, ok := l.target.(bank.GradientScope); ok {
		if restore := gs.NoGrad(); restore != nil {
			defer restore()
		}
	}
	return l.target.Encode(ctx, x)
}
