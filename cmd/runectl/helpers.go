package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ahrav/go-rune/infrastructure/blueprints"
	"github.com/ahrav/go-rune/infrastructure/middleware"
	"github.com/ahrav/go-rune/internal/application"
	"github.com/ahrav/go-rune/internal/domain"
)

// syncWriter serialises writes from concurrent runs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// newRegistry returns the built-in blueprints, each metered with
// fuelPerNode when it is positive.
func newRegistry(fuelPerNode int64) (*application.Registry[*domain.RuneExecutionContext], error) {
	if fuelPerNode <= 0 {
		return application.NewDefaultRegistry(), nil
	}

	metered, err := middleware.MeterAll(blueprints.All(), fuelPerNode)
	if err != nil {
		return nil, err
	}
	r := application.NewRegistry[*domain.RuneExecutionContext]()
	for _, bp := range metered {
		if err := r.Register(bp); err != nil {
			return nil, err
		}
	}
	return r, nil
}
