package stitch

import (
	"github.com/quiltql/quilt/delegate"
)

// RouteTable records which subschema owns every typename:fieldname pair of
// the composite schema. Root operation types are registered under their
// global names, so the gateway can route root fields without knowing the
// subschemas' local root type names.
type RouteTable struct {
	types      map[string]map[string]*delegate.SubschemaConfig
	subschemas []*delegate.SubschemaConfig
}

func NewRouteTable() *RouteTable {
	return &RouteTable{
		types: make(map[string]map[string]*delegate.SubschemaConfig),
	}
}

// Set registers cfg as the owner of typename.fieldname. A later Set for the
// same pair overwrites the earlier owner.
func (t *RouteTable) Set(typename, fieldname string, cfg *delegate.SubschemaConfig) {
	if t.types[typename] == nil {
		t.types[typename] = make(map[string]*delegate.SubschemaConfig)
	}
	t.types[typename][fieldname] = cfg

	for _, known := range t.subschemas {
		if known == cfg {
			return
		}
	}
	t.subschemas = append(t.subschemas, cfg)
}

func (t *RouteTable) Get(typename, fieldname string) (*delegate.SubschemaConfig, bool) {
	fields := t.types[typename]
	if fields == nil {
		return nil, false
	}
	cfg, ok := fields[fieldname]
	return cfg, ok
}

// GetForType returns the distinct subschemas contributing fields to
// typename, in registration order.
func (t *RouteTable) GetForType(typename string) ([]*delegate.SubschemaConfig, bool) {
	fields := t.types[typename]
	if fields == nil {
		return nil, false
	}

	var res []*delegate.SubschemaConfig
	for _, cfg := range t.subschemas {
		for _, owner := range fields {
			if owner == cfg {
				res = append(res, cfg)
				break
			}
		}
	}
	return res, true
}

// Subschemas returns every registered subschema in registration order.
func (t *RouteTable) Subschemas() []*delegate.SubschemaConfig {
	return t.subschemas
}
