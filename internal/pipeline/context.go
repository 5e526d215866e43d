package pipeline

import (
	"fmt"
	"runtime/debug"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
)

// HandlerFunc is one pipeline stage. A stage that wants to observe the state
// after the reducer ran calls c.Next() first.
type HandlerFunc func(c *Context)

// Stage is a named HandlerFunc. The name shows up in logs and error reports.
type Stage struct {
	Name    string
	Handler HandlerFunc
}

// Context carries one dispatched action through the stages.
type Context struct {
	Action state.Action

	store   *Store
	prev    state.RootState
	stages  []Stage
	index   int
	applied bool
}

// Next runs the remaining stages. The last stage is always the reducer.
func (c *Context) Next() {
	c.index++
	for c.index < len(c.stages) {
		c.run(c.index)
		c.index++
	}
}

// run executes one stage. A panicking stage is reported and skipped; if it had
// not handed over yet, the chain continues with the following stage.
func (c *Context) run(i int) {
	stage := c.stages[i]
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("stage %s panicked: %v", stage.Name, rec)
			logger.WithAction("pipeline", c.Action.Type).Errorf("%v\n%s", err, debug.Stack())
			c.store.reporter.Report(stage.Name, rec, c.Action)
		}
	}()
	stage.Handler(c)
}

// Previous is the state before this action was reduced.
func (c *Context) Previous() state.RootState {
	return c.prev
}

// State is the current state: the previous one until the reducer ran, the new
// one afterwards.
func (c *Context) State() state.RootState {
	return c.store.state
}

// Applied reports whether the reducer stage has run.
func (c *Context) Applied() bool {
	return c.applied
}

// Store returns the store the action was dispatched to.
func (c *Context) Store() *Store {
	return c.store
}
