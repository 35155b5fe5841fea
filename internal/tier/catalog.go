package tier

// catalog is the hardcoded tier catalogue.
var catalog = map[Name]Definition{
	PayAsYouGo: {
		Name: PayAsYouGo,
		Quotas: Quotas{
			CPURequest:    "500m",
			CPULimit:      "2",
			MemoryRequest: "1Gi",
			MemoryLimit:   "4Gi",
			StorageQuota:  "5Gi",
			MaxPods:       10,
		},
		Feature: Features{CodeEditor: true},
		FeatureHourlyCost: map[Feature]float64{
			FeatureAutomation: 3,
			FeatureEditor:     2,
			FeatureLLM:        6,
		},
		FeatureStorage: map[Feature]string{
			FeatureEditor: "2Gi",
		},
		BaseUIHourlyCost:     1,
		StorageCostPerGBHour: 0.1,
		MinimumBalance:       10,
		MaxProfiles:          1,
		MaxTeams:             1,
	},
	Starter: {
		Name: Starter,
		Quotas: Quotas{
			CPURequest:    "1",
			CPULimit:      "4",
			MemoryRequest: "2Gi",
			MemoryLimit:   "8Gi",
			StorageQuota:  "20Gi",
			MaxPods:       25,
		},
		Feature: Features{AutomationEngine: true, CodeEditor: true},
		FeatureHourlyCost: map[Feature]float64{
			FeatureAutomation: 3,
			FeatureEditor:     2,
			FeatureLLM:        6,
		},
		FeatureStorage: map[Feature]string{
			FeatureAutomation: "5Gi",
			FeatureEditor:     "5Gi",
		},
		BaseUIHourlyCost:     1,
		StorageCostPerGBHour: 0.1,
		MinimumBalance:       25,
		MaxProfiles:          5,
		MaxTeams:             1,
	},
	Team: {
		Name: Team,
		Quotas: Quotas{
			CPURequest:    "2",
			CPULimit:      "8",
			MemoryRequest: "4Gi",
			MemoryLimit:   "16Gi",
			StorageQuota:  "100Gi",
			MaxPods:       50,
		},
		Feature: Features{AutomationEngine: true, CodeEditor: true, LLMRuntime: true},
		FeatureHourlyCost: map[Feature]float64{
			FeatureAutomation: 3,
			FeatureEditor:     2,
			FeatureLLM:        6,
		},
		FeatureStorage: map[Feature]string{
			FeatureAutomation: "10Gi",
			FeatureEditor:     "10Gi",
			FeatureLLM:        "50Gi",
		},
		BaseUIHourlyCost:     1,
		StorageCostPerGBHour: 0.1,
		MinimumBalance:       100,
		MaxProfiles:          25,
		MaxTeams:             5,
	},
}

// DefinitionFor returns the definition for a tier name. Unknown names
// resolve to the default tier; callers never see a "tier not found" error.
func DefinitionFor(name string) Definition {
	if def, ok := catalog[Name(name)]; ok {
		return clone(def)
	}
	return clone(catalog[Default])
}

// Known reports whether the tier name exists in the catalogue.
func Known(name string) bool {
	_, ok := catalog[Name(name)]
	return ok
}

// Names returns all catalogue tier names.
func Names() []Name {
	return []Name{PayAsYouGo, Starter, Team}
}

// MinimumBalanceFor returns the provisioning minimum for a tier.
// Unknown tiers fall back to the lowest minimum in the catalogue.
func MinimumBalanceFor(name string) float64 {
	if def, ok := catalog[Name(name)]; ok {
		return def.MinimumBalance
	}
	lowest := 0.0
	first := true
	for _, def := range catalog {
		if first || def.MinimumBalance < lowest {
			lowest = def.MinimumBalance
			first = false
		}
	}
	return lowest
}

// clone deep-copies a definition so callers cannot mutate the catalogue.
func clone(def Definition) Definition {
	costs := make(map[Feature]float64, len(def.FeatureHourlyCost))
	for k, v := range def.FeatureHourlyCost {
		costs[k] = v
	}
	storage := make(map[Feature]string, len(def.FeatureStorage))
	for k, v := range def.FeatureStorage {
		storage[k] = v
	}
	def.FeatureHourlyCost = costs
	def.FeatureStorage = storage
	return def
}
