package output

import "github.com/shaunagostinho/relalt/internal/pipeline"

// Fanout delivers every event to each sink in order.
type Fanout []pipeline.Sink

func (f Fanout) Handle(ev pipeline.Event) {
	for _, s := range f {
		s.Handle(ev)
	}
}
