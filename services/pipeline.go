package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress wird zurückgegeben, wenn bereits ein Lauf aktiv ist.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Step ist ein Knoten des Pipeline-Graphen. Jeder Schritt schreibt in eigenen Transaktionen.
type Step struct {
	Name      string
	DependsOn []string
	Run       func(ctx context.Context) error
}

// StepError nennt den fehlgeschlagenen Schritt.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline führt einen gerichteten azyklischen Graphen von Schritten aus.
// Schritte, deren Abhängigkeiten erfüllt sind, laufen gemeinsam in einer Welle.
type Pipeline struct {
	logger  *zap.Logger
	metrics *Metrics
	steps   map[string]Step
	waves   [][]string

	mu sync.Mutex
}

// NewPipeline prüft den Graphen auf doppelte Namen, unbekannte Abhängigkeiten und Zyklen.
func NewPipeline(logger *zap.Logger, metrics *Metrics, steps ...Step) (*Pipeline, error) {
	p := &Pipeline{logger: logger, metrics: metrics, steps: make(map[string]Step, len(steps))}
	var names []string
	for _, s := range steps {
		if s.Name == "" || s.Run == nil {
			return nil, fmt.Errorf("step %q: name and run function are required", s.Name)
		}
		if _, dup := p.steps[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		p.steps[s.Name] = s
		names = append(names, s.Name)
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := p.steps[dep]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.Name, dep)
			}
		}
	}

	done := make(map[string]bool, len(names))
	for len(done) < len(names) {
		var wave []string
		for _, n := range names {
			if done[n] {
				continue
			}
			ready := true
			for _, dep := range p.steps[n].DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			return nil, errors.New("step graph contains a cycle")
		}
		for _, n := range wave {
			done[n] = true
		}
		p.waves = append(p.waves, wave)
	}
	return p, nil
}

// Waves gibt die Ausführungsreihenfolge zurück.
func (p *Pipeline) Waves() [][]string {
	out := make([][]string, len(p.waves))
	for i, w := range p.waves {
		out[i] = slices.Clone(w)
	}
	return out
}

// Step gibt die Definition eines Schritts zurück.
func (p *Pipeline) Step(name string) (Step, bool) {
	s, ok := p.steps[name]
	return s, ok
}

// Run führt alle Schritte aus. Mit only werden nur die genannten Schritte in Graph-Reihenfolge ausgeführt.
// Der erste Fehler bricht den Lauf ab und wird als *StepError zurückgegeben.
func (p *Pipeline) Run(ctx context.Context, only ...string) error {
	if err := p.validate(only); err != nil {
		return err
	}
	if !p.mu.TryLock() {
		return ErrRunInProgress
	}
	defer p.mu.Unlock()
	return p.run(ctx, only)
}

// RunAsync startet einen Lauf im Hintergrund. ErrRunInProgress wird sofort gemeldet,
// das Ergebnis des Laufs kommt über den Kanal.
func (p *Pipeline) RunAsync(ctx context.Context, only ...string) (<-chan error, error) {
	if err := p.validate(only); err != nil {
		return nil, err
	}
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	done := make(chan error, 1)
	go func() {
		defer p.mu.Unlock()
		done <- p.run(ctx, only)
	}()
	return done, nil
}

func (p *Pipeline) validate(only []string) error {
	for _, n := range only {
		if _, ok := p.steps[n]; !ok {
			return fmt.Errorf("unknown step %q", n)
		}
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, only []string) error {
	start := time.Now()
	p.logger.Info("Pipeline-Lauf gestartet", zap.Strings("only", only))
	for _, wave := range p.waves {
		if len(only) > 0 {
			wave = slices.DeleteFunc(slices.Clone(wave), func(n string) bool { return !slices.Contains(only, n) })
		}
		if len(wave) == 0 {
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range wave {
			step := p.steps[name]
			g.Go(func() error { return p.runStep(gctx, step) })
		}
		if err := g.Wait(); err != nil {
			p.logger.Error("Pipeline-Lauf abgebrochen", zap.Error(err))
			return err
		}
	}
	p.logger.Info("Pipeline-Lauf abgeschlossen", zap.Duration("duration", time.Since(start)))
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step) error {
	log := p.logger.With(zap.String("step", step.Name))
	start := time.Now()
	log.Info("Starte Schritt")

	err := ctx.Err()
	if err == nil {
		err = step.Run(ctx)
	}
	p.metrics.stepDone(step.Name, start, err)
	if err != nil {
		log.Error("Schritt fehlgeschlagen", zap.Error(err))
		return &StepError{Step: step.Name, Err: err}
	}
	log.Info("Schritt abgeschlossen", zap.Duration("duration", time.Since(start)))
	return nil
}
