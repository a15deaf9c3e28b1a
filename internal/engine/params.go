package engine

import "flowforge-engine/internal/ffeerr"

// InstanceParameter is an immutable keyed input value for one block.
type InstanceParameter struct {
	InternalBlockID string
	Value           string
}

// InstanceParameters is an immutable, ordered bag of InstanceParameter
// looked up by InternalBlockID. It never mutates after construction.
type InstanceParameters struct {
	items []InstanceParameter
}

// NewInstanceParameters validates and wraps params. Both fields of
// every parameter must be non-blank.
func NewInstanceParameters(params []InstanceParameter) (*InstanceParameters, error) {
	items := make([]InstanceParameter, len(params))
	for i, p := range params {
		if p.InternalBlockID == "" || p.Value == "" {
			return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "NewInstanceParameters", nil)
		}
		items[i] = p
	}
	return &InstanceParameters{items: items}, nil
}

// Lookup returns the parameter registered for internalBlockID, if any.
func (p *InstanceParameters) Lookup(internalBlockID string) (InstanceParameter, bool) {
	if p == nil {
		return InstanceParameter{}, false
	}
	for _, item := range p.items {
		if item.InternalBlockID == internalBlockID {
			return item, true
		}
	}
	return InstanceParameter{}, false
}

// Len reports how many parameters are carried.
func (p *InstanceParameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}
