package schema

// Automation is one automation definition as loaded from the host's YAML
// store. Config holds the raw mapping exactly as written; ID, Alias and
// Description are resolved copies of the corresponding Config fields.
type Automation struct {
	ID          string         `json:"id"`
	Alias       string         `json:"alias,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config"`
}

// Name returns the best human-readable identifier for the automation.
func (a *Automation) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	if a.ID != "" {
		return a.ID
	}
	return "Unnamed Automation"
}
