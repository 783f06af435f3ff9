package canopy

import (
	"sync"
)

// Pool holds multiple pipelines so several flights can be analysed
// concurrently, each pipeline with its own classifier instance
type Pool struct {
	// pool of pipelines
	pipelines chan *Pipeline
	// size of pool
	size  int
	close sync.Once
}

// NewPool creates a pipeline pool.  newClassifier is called once per
// pipeline so each holds its own inference runtime, pass nil to run
// without classification.
func NewPool(size int, cfg Config,
	newClassifier func() (Classifier, error)) (*Pool, error) {

	p := &Pool{
		pipelines: make(chan *Pipeline, size),
		size:      size,
	}

	for i := 0; i < size; i++ {

		var cls Classifier

		if newClassifier != nil {
			var err error
			cls, err = newClassifier()

			if err != nil {
				// close any instances that may have been created before
				// receiving the error
				p.Close()
				return nil, err
			}
		}

		pipe, err := NewPipeline(cfg, cls)

		if err != nil {
			if cls != nil {
				_ = cls.Close()
			}

			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(pipe)
	}

	return p, nil
}

// Get a pipeline from the pool, blocking until one is free
func (p *Pool) Get() *Pipeline {
	return <-p.pipelines
}

// Return a pipeline to the pool
func (p *Pool) Return(pipe *Pipeline) {
	select {
	case p.pipelines <- pipe:
	default:
		// pool is full or closed
	}
}

// Close the pool and all pipelines in it
func (p *Pool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.pipelines)

		// close all pipelines
		for next := range p.pipelines {
			_ = next.Close()
		}
	})
}
