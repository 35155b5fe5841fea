// Package tier defines the subscription tier catalogue for Skyhook.
//
// A tier bundles resource quotas, enabled workspace features, per-feature
// hourly credit costs, and the flat minimum balance required to provision.
// Definitions are immutable after load; callers receive copies.
package tier

// Name identifies a subscription tier.
type Name string

const (
	PayAsYouGo Name = "pay-as-you-go"
	Starter    Name = "starter"
	Team       Name = "team"
)

// Default is the tier unknown names resolve to.
const Default = PayAsYouGo

// Feature identifies an optional workspace feature workload.
type Feature string

const (
	FeatureAutomation Feature = "automation-engine"
	FeatureEditor     Feature = "code-editor"
	FeatureLLM        Feature = "llm-runtime"
)

// Quotas holds the Kubernetes resource bounds for a tenant namespace.
// CPU/memory/storage values are Kubernetes quantity strings.
type Quotas struct {
	CPURequest    string `json:"cpuRequest"`
	CPULimit      string `json:"cpuLimit"`
	MemoryRequest string `json:"memoryRequest"`
	MemoryLimit   string `json:"memoryLimit"`
	StorageQuota  string `json:"storageQuota"`
	MaxPods       int    `json:"maxPods"`
}

// Features is the feature flag set for a tier.
type Features struct {
	AutomationEngine bool `json:"automationEngine"`
	CodeEditor       bool `json:"codeEditor"`
	LLMRuntime       bool `json:"llmRuntime"`
}

// Enabled returns the features switched on, in catalogue order.
func (f Features) Enabled() []Feature {
	var out []Feature
	if f.AutomationEngine {
		out = append(out, FeatureAutomation)
	}
	if f.CodeEditor {
		out = append(out, FeatureEditor)
	}
	if f.LLMRuntime {
		out = append(out, FeatureLLM)
	}
	return out
}

// Has reports whether a single feature is enabled.
func (f Features) Has(feat Feature) bool {
	switch feat {
	case FeatureAutomation:
		return f.AutomationEngine
	case FeatureEditor:
		return f.CodeEditor
	case FeatureLLM:
		return f.LLMRuntime
	}
	return false
}

// Definition is the full configuration of a tier. Tenants hold a copy of
// the definition taken at provision/upgrade time, so later catalogue edits
// never retroactively change a provisioned tenant.
type Definition struct {
	Name    Name     `json:"name"`
	Quotas  Quotas   `json:"quotas"`
	Feature Features `json:"features"`

	// FeatureHourlyCost is the credit cost per hour for each feature,
	// charged only while the feature is enabled.
	FeatureHourlyCost map[Feature]float64 `json:"featureHourlyCost"`

	// FeatureStorage is the persistent volume size provisioned per feature.
	FeatureStorage map[Feature]string `json:"featureStorage"`

	// BaseUIHourlyCost is charged for the workspace UI regardless of features.
	BaseUIHourlyCost float64 `json:"baseUiHourlyCost"`

	// StorageCostPerGBHour is charged per provisioned GB of namespace storage.
	StorageCostPerGBHour float64 `json:"storageCostPerGbHour"`

	// MinimumBalance is the flat credit balance required to provision or
	// upgrade onto this tier. Distinct from the hourly rate.
	MinimumBalance float64 `json:"minimumBalance"`

	MaxProfiles int `json:"maxProfiles"`
	MaxTeams    int `json:"maxTeams"`
}
