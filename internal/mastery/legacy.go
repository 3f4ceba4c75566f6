package mastery

// LegacyConfig parameterizes the deterministic update that predates BKT.
type LegacyConfig struct {
	LearnGain    float64
	ErrorPenalty float64
	Min          float64
	Max          float64
}

func DefaultLegacyConfig() LegacyConfig {
	return LegacyConfig{LearnGain: 0.15, ErrorPenalty: 0.10, Min: 0.0, Max: 1.0}
}

// LegacyUpdate moves mastery a fixed fraction toward 1 on success and toward
// 0 on failure. Kept for offline comparison with BKT; the worker never calls it.
func LegacyUpdate(cfg LegacyConfig, old float64, correct bool) float64 {
	var next float64
	if correct {
		next = old + cfg.LearnGain*(1-old)
	} else {
		next = old - cfg.ErrorPenalty*old
	}
	return clampRange(next, cfg.Min, cfg.Max)
}
