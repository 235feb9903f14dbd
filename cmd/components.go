package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gwuah/steerd/types"
)

// components keeps track of what's been initialised so that it can be
// cleaned up in reverse order.
type components struct {
	initialised []types.Component
}

func (cs *components) init(c types.Component) error {
	if err := c.Init(); err != nil {
		return fmt.Errorf("error setting up %s: %w", c, err)
	}
	cs.initialised = append(cs.initialised, c)
	return nil
}

// run starts every component and returns a function waiting for all of
// them to return once done is closed.
func (cs *components) run(done <-chan struct{}) (wait func()) {
	var wg sync.WaitGroup
	for _, c := range cs.initialised {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Debug("running component", "component", c)
			c.Run(done)
		}()
	}
	return wg.Wait
}

func (cs *components) cleanup() {
	for i := len(cs.initialised) - 1; i >= 0; i-- {
		c := cs.initialised[i]
		if err := c.Cleanup(); err != nil {
			slog.Error("error cleaning up component", "component", c, "err", err)
		}
	}
	cs.initialised = nil
}
