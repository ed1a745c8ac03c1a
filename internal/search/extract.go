package search

import (
	"strings"
)

// References are the external names one automation configuration touches.
type References struct {
	Entities  []string `json:"entities"`
	Services  []string `json:"services"`
	Platforms []string `json:"platforms"`
}

// ExtractReferences walks a raw automation configuration collecting entity
// ids, called services and trigger platforms, however deeply nested.
func ExtractReferences(config map[string]any) References {
	c := &collector{
		entities:  make(map[string]struct{}),
		services:  make(map[string]struct{}),
		platforms: make(map[string]struct{}),
	}
	c.walk(config)
	return References{
		Entities:  sortedKeys(c.entities),
		Services:  sortedKeys(c.services),
		Platforms: sortedKeys(c.platforms),
	}
}

type collector struct {
	entities  map[string]struct{}
	services  map[string]struct{}
	platforms map[string]struct{}
}

func (c *collector) walk(v any) {
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			switch key {
			case "entity_id":
				c.addEntities(val)
			case "service", "action":
				if s, ok := val.(string); ok && strings.Contains(s, ".") {
					c.services[s] = struct{}{}
				}
			case "platform", "trigger":
				if s, ok := val.(string); ok && s != "" && !strings.Contains(s, ".") {
					c.platforms[s] = struct{}{}
				}
			case "scene":
				c.addEntities(val)
			}
			c.walk(val)
		}
	case []any:
		for _, item := range t {
			c.walk(item)
		}
	}
}

// addEntities accepts a single entity id or a list of them. Anything
// without a domain separator is ignored.
func (c *collector) addEntities(v any) {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, ".") {
			c.entities[t] = struct{}{}
		}
	case []any:
		for _, item := range t {
			c.addEntities(item)
		}
	}
}
