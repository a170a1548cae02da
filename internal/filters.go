package internal

import (
	"encoding/json"
	"log"
	"strings"

	"hookfeed/pkg/events"

	"github.com/Knetic/govaluate"
)

type compiledFilter struct {
	name  string
	kinds map[events.Kind]struct{}
	expr  *govaluate.EvaluableExpression
}

// FilterSet decides which deliveries are dropped before extraction.
type FilterSet struct {
	filters []compiledFilter
	logger  *log.Logger
}

// NewFilterSet compiles every filter expression; any invalid expression fails.
func NewFilterSet(cfg FiltersConfig) (*FilterSet, error) {
	filters := make([]compiledFilter, 0, len(cfg.Filters))
	for _, filter := range cfg.Filters {
		expr, err := govaluate.NewEvaluableExpression(filter.When)
		if err != nil {
			return nil, err
		}
		compiled := compiledFilter{name: filter.Name, expr: expr}
		if len(filter.Kinds) > 0 {
			compiled.kinds = make(map[events.Kind]struct{}, len(filter.Kinds))
			for _, kind := range filter.Kinds {
				compiled.kinds[events.Kind(strings.ToLower(kind))] = struct{}{}
			}
		}
		filters = append(filters, compiled)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &FilterSet{filters: filters, logger: logger}, nil
}

// Match returns the name of the first filter that drops this delivery.
// Payloads that are not JSON objects never match; extraction reports them.
func (f *FilterSet) Match(kind events.Kind, body []byte) (string, bool) {
	if f == nil || len(f.filters) == 0 {
		return "", false
	}
	var object map[string]interface{}
	if err := json.Unmarshal(body, &object); err != nil {
		return "", false
	}
	data := Flatten(object)

	for _, filter := range f.filters {
		if filter.kinds != nil {
			if _, ok := filter.kinds[kind]; !ok {
				continue
			}
		}
		result, err := filter.expr.Evaluate(data)
		if err != nil {
			f.logger.Printf("filter %s eval failed: %v", filter.name, err)
			continue
		}
		if ok, _ := result.(bool); ok {
			return filter.name, true
		}
	}
	return "", false
}
