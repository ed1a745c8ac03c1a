package graph

import (
	"fmt"
	"strings"
)

// Label formatters turn one trigger/condition/action configuration into a
// short display string. They are total: every shape produces a label, and
// unrecognized shapes degrade to a generic fallback instead of failing.

// TriggerLabel formats a label for a single trigger configuration.
func TriggerLabel(trigger map[string]any) string {
	platform := stringField(trigger, "platform")
	if platform == "" {
		// Modern configs use "trigger" as the platform key.
		platform = stringField(trigger, "trigger")
	}

	switch platform {
	case "state":
		entity := entityString(trigger["entity_id"])
		to := stringField(trigger, "to")
		from := stringField(trigger, "from")
		switch {
		case to != "" && from != "":
			return fmt.Sprintf("State: %s %s → %s", entity, from, to)
		case to != "":
			return fmt.Sprintf("State: %s → %s", entity, to)
		case from != "":
			return fmt.Sprintf("State: %s from %s", entity, from)
		default:
			return fmt.Sprintf("State: %s", entity)
		}

	case "time":
		if at := entityString(trigger["at"]); at != "" {
			return fmt.Sprintf("Time: %s", at)
		}
		return "Time trigger"

	case "sun":
		event := stringField(trigger, "event")
		if event == "" {
			return "Sun trigger"
		}
		if offset := stringField(trigger, "offset"); offset != "" {
			return fmt.Sprintf("Sun: %s %s", event, offset)
		}
		return fmt.Sprintf("Sun: %s", event)

	case "numeric_state":
		entity := entityString(trigger["entity_id"])
		if bounds := boundsString(trigger); bounds != "" {
			return fmt.Sprintf("Numeric State: %s %s", entity, bounds)
		}
		return fmt.Sprintf("Numeric State: %s", entity)

	case "template":
		return "Template trigger"

	case "time_pattern":
		h := fieldOr(trigger, "hours", "*")
		m := fieldOr(trigger, "minutes", "*")
		s := fieldOr(trigger, "seconds", "*")
		return fmt.Sprintf("Time pattern: %s:%s:%s", h, m, s)

	case "event":
		if et := entityString(trigger["event_type"]); et != "" {
			return fmt.Sprintf("Event: %s", et)
		}
		return "Event trigger"

	case "webhook":
		if id := stringField(trigger, "webhook_id"); id != "" {
			return fmt.Sprintf("Webhook: %s", id)
		}
		return "Webhook trigger"

	case "mqtt":
		if topic := stringField(trigger, "topic"); topic != "" {
			return fmt.Sprintf("MQTT: %s", topic)
		}
		return "MQTT trigger"

	case "zone":
		entity := stringField(trigger, "entity_id")
		zone := stringField(trigger, "zone")
		event := fieldOr(trigger, "event", "enter")
		if entity != "" && zone != "" {
			return fmt.Sprintf("Zone: %s %s %s", entity, event, zone)
		}
		return "Zone trigger"

	case "homeassistant":
		return fmt.Sprintf("Home Assistant: %s", fieldOr(trigger, "event", "start"))

	case "device":
		if t := stringField(trigger, "type"); t != "" {
			return fmt.Sprintf("Device: %s", t)
		}
		if d := stringField(trigger, "domain"); d != "" {
			return fmt.Sprintf("Device: %s", d)
		}
		return "Device trigger"

	case "":
		return "Unknown trigger"

	default:
		return fmt.Sprintf("%s trigger", platform)
	}
}

// ConditionLabel formats a label for a single condition configuration.
func ConditionLabel(condition map[string]any) string {
	kind := stringField(condition, "condition")

	switch kind {
	case "state":
		entity := entityString(condition["entity_id"])
		if state := entityString(condition["state"]); state != "" {
			return fmt.Sprintf("State: %s == %s", entity, state)
		}
		return fmt.Sprintf("State: %s", entity)

	case "numeric_state":
		entity := entityString(condition["entity_id"])
		if bounds := boundsString(condition); bounds != "" {
			return fmt.Sprintf("Numeric State: %s %s", entity, bounds)
		}
		return fmt.Sprintf("Numeric State: %s", entity)

	case "sun":
		if parts := afterBefore(condition); parts != "" {
			return fmt.Sprintf("Sun: %s", parts)
		}
		return "Sun condition"

	case "time":
		if parts := afterBefore(condition); parts != "" {
			return fmt.Sprintf("Time: %s", parts)
		}
		return "Time condition"

	case "template":
		return "Template condition"

	case "zone":
		entity := entityString(condition["entity_id"])
		zone := stringField(condition, "zone")
		return fmt.Sprintf("Zone: %s in %s", entity, zone)

	case "and", "or", "not":
		n := len(toList(condition["conditions"]))
		return fmt.Sprintf("%s (%s)", strings.ToUpper(kind), plural(n, "condition"))

	case "":
		return "Unknown condition"

	default:
		return fmt.Sprintf("%s condition", kind)
	}
}

// ActionLabel formats a label for a single action configuration. Control
// constructs (choose/if/parallel/repeat) get summary labels; the parser
// recurses into their bodies separately.
func ActionLabel(action map[string]any) string {
	if svc := serviceName(action); svc != "" {
		return fmt.Sprintf("Service: %s", svc)
	}

	switch {
	case hasKey(action, "delay"):
		return fmt.Sprintf("Delay: %s", humanizeDelay(action["delay"]))

	case hasKey(action, "choose"):
		n := len(toList(action["choose"]))
		return fmt.Sprintf("Choose (%s)", plural(n, "option"))

	case hasKey(action, "if"):
		return "If-Then"

	case hasKey(action, "parallel"):
		n := len(toList(action["parallel"]))
		return fmt.Sprintf("Parallel (%s)", plural(n, "action"))

	case hasKey(action, "repeat"):
		return repeatLabel(action["repeat"])

	case hasKey(action, "scene"):
		return fmt.Sprintf("Activate Scene: %s", entityString(action["scene"]))

	case hasKey(action, "event"):
		return fmt.Sprintf("Fire event: %s", entityString(action["event"]))

	case hasKey(action, "wait_template"):
		if timeout := stringField(action, "timeout"); timeout != "" {
			return fmt.Sprintf("Wait for template (timeout: %s)", timeout)
		}
		return "Wait for template"

	case hasKey(action, "wait_for_trigger"):
		if timeout := stringField(action, "timeout"); timeout != "" {
			return fmt.Sprintf("Wait for trigger (timeout: %s)", timeout)
		}
		return "Wait for trigger"

	case hasKey(action, "stop"):
		if msg := stringField(action, "stop"); msg != "" {
			return fmt.Sprintf("Stop: %s", msg)
		}
		return "Stop"

	case hasKey(action, "variables"):
		if vars, ok := action["variables"].(map[string]any); ok {
			return fmt.Sprintf("Set %s", plural(len(vars), "variable"))
		}
		return "Set variables"

	case hasKey(action, "device_id"):
		if t := stringField(action, "type"); t != "" {
			return fmt.Sprintf("Device: %s", t)
		}
		if d := stringField(action, "domain"); d != "" {
			return fmt.Sprintf("Device: %s", d)
		}
		return "Device action"

	default:
		return "Unknown action"
	}
}

// serviceName extracts the called service from either the legacy "service"
// key or the modern "action" key. Returns "" for non-service actions.
func serviceName(action map[string]any) string {
	if svc := stringField(action, "service"); svc != "" {
		return svc
	}
	return stringField(action, "action")
}

// repeatLabel distinguishes count, while and until repeat modes.
func repeatLabel(v any) string {
	cfg, ok := v.(map[string]any)
	if !ok {
		return "Repeat"
	}
	switch {
	case hasKey(cfg, "count"):
		return fmt.Sprintf("Repeat %sx", fieldOr(cfg, "count", "?"))
	case hasKey(cfg, "while"):
		return "Repeat while..."
	case hasKey(cfg, "until"):
		return "Repeat until..."
	case hasKey(cfg, "for_each"):
		return "Repeat for each"
	default:
		return "Repeat"
	}
}

// humanizeDelay renders a delay value (seconds, "HH:MM:SS" string, or a
// dict of hours/minutes/seconds) as a readable duration.
func humanizeDelay(v any) string {
	switch d := v.(type) {
	case string:
		if d == "" {
			return "0 seconds"
		}
		return d
	case int, int64, float64:
		return plural(asInt(d), "second")
	case map[string]any:
		var parts []string
		if h := asInt(d["hours"]); h > 0 {
			parts = append(parts, plural(h, "hour"))
		}
		if m := asInt(d["minutes"]); m > 0 {
			parts = append(parts, plural(m, "minute"))
		}
		if s := asInt(d["seconds"]); s > 0 {
			parts = append(parts, plural(s, "second"))
		}
		if len(parts) == 0 {
			return "0 seconds"
		}
		return strings.Join(parts, " ")
	default:
		return "0 seconds"
	}
}

// summarizeConditions builds a one-line summary of a branch condition list,
// used for choose-option edge labels.
func summarizeConditions(conditions []any) string {
	if len(conditions) == 0 {
		return "condition"
	}
	if len(conditions) > 1 {
		return fmt.Sprintf("%d conditions", len(conditions))
	}

	cond, ok := conditions[0].(map[string]any)
	if !ok {
		if s, isStr := conditions[0].(string); isStr && s != "" {
			return "template"
		}
		return "condition"
	}

	switch stringField(cond, "condition") {
	case "state":
		entity := entityString(cond["entity_id"])
		if state := entityString(cond["state"]); state != "" {
			return fmt.Sprintf("%s = %s", entity, state)
		}
		return entity
	case "numeric_state":
		entity := entityString(cond["entity_id"])
		if bounds := boundsString(cond); bounds != "" {
			return fmt.Sprintf("%s %s", entity, bounds)
		}
		return entity
	case "template":
		return "template"
	case "and":
		return fmt.Sprintf("all of %d", len(toList(cond["conditions"])))
	case "or":
		return fmt.Sprintf("any of %d", len(toList(cond["conditions"])))
	case "not":
		return "NOT condition"
	case "":
		return "condition"
	default:
		return stringField(cond, "condition")
	}
}

// --- field helpers ---

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// stringField returns the field rendered as a string, or "" when absent.
// Numbers and booleans are stringified; lists and maps are not.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return fmt.Sprintf("%t", s)
	case int, int64, float64:
		return trimFloat(fmt.Sprintf("%v", s))
	default:
		return ""
	}
}

// fieldOr is stringField with a fallback for absent values.
func fieldOr(m map[string]any, key, def string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return def
}

// entityString renders an entity_id value (string or list) for display.
func entityString(v any) string {
	switch e := v.(type) {
	case nil:
		return "unknown"
	case string:
		if e == "" {
			return "unknown"
		}
		return e
	case []any:
		if len(e) == 0 {
			return "unknown"
		}
		parts := make([]string, 0, len(e))
		for _, item := range e {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return trimFloat(fmt.Sprintf("%v", e))
	}
}

// boundsString renders above/below numeric bounds, including only those present.
func boundsString(m map[string]any) string {
	var parts []string
	if above := stringField(m, "above"); above != "" {
		parts = append(parts, "> "+above)
	}
	if below := stringField(m, "below"); below != "" {
		parts = append(parts, "< "+below)
	}
	return strings.Join(parts, ", ")
}

// afterBefore renders after/before time bounds, including only those present.
func afterBefore(m map[string]any) string {
	var parts []string
	if after := stringField(m, "after"); after != "" {
		parts = append(parts, "after "+after)
	}
	if before := stringField(m, "before"); before != "" {
		parts = append(parts, "before "+before)
	}
	return strings.Join(parts, ", ")
}

// toList normalizes a config value to a list: a bare value becomes a
// one-element list, nil becomes an empty list.
func toList(v any) []any {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		return l
	default:
		return []any{v}
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// trimFloat cleans "5" out of float-rendered "5" (yaml ints stay ints, but
// JSON decoding produces float64 for all numbers).
func trimFloat(s string) string {
	return strings.TrimSuffix(s, ".0")
}
